package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/commerce-metrics-api/internal/middleware"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
)

// Routes groups the handlers mounted by RegisterRoutes. Exports may be nil to disable them.
type Routes struct {
	APIPrefix string
	Metrics   *MetricsHandler
	Exports   *ExportHandler
	Snapshots *SnapshotHandler
	System    *SystemHandler
	Tokens    middleware.TokenValidator
	// Throttle runs before every API route when set.
	Throttle gin.HandlerFunc
}

// RegisterRoutes mounts health endpoints at the root and the API under APIPrefix.
func RegisterRoutes(r *gin.Engine, routes Routes) {
	r.GET("/health", routes.System.Health)
	r.GET("/ready", routes.System.Ready)
	r.GET("/metrics", routes.System.Prometheus)

	api := r.Group(routes.APIPrefix)
	if routes.Throttle != nil {
		api.Use(routes.Throttle)
	}
	api.Use(middleware.WithResponseMeta())

	m := api.Group("/metrics")
	m.GET("/revenue", routes.Metrics.Revenue)
	m.GET("/aov", routes.Metrics.AverageOrderValue)
	m.GET("/orders", routes.Metrics.Orders)
	m.GET("/monthly-growth", routes.Metrics.MonthlyGrowth)
	m.GET("/categories", routes.Metrics.Categories)
	m.GET("/states", routes.Metrics.States)
	m.GET("/delivery", routes.Metrics.Delivery)
	m.GET("/order-status", routes.Metrics.OrderStatus)
	m.GET("/summary", routes.Metrics.Summary)
	m.GET("/datasets", routes.Metrics.Datasets)
	m.GET("/system", routes.System.System)

	if routes.Exports != nil {
		m.POST("/exports", routes.Exports.Create)
		m.GET("/exports/:id", routes.Exports.Status)
		m.GET("/exports/download/:token", routes.Exports.Download)
	}

	s := api.Group("/snapshots")
	s.GET("/current", routes.Snapshots.Current)
	operator := s.Group("", middleware.JWT(routes.Tokens), middleware.RequireRoles(models.RoleOperator))
	operator.POST("/reload", routes.Snapshots.Reload)
	operator.GET("/reload/:id", routes.Snapshots.ReloadStatus)
}
