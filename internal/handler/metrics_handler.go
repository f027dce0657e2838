package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/commerce-metrics-api/internal/dto"
	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/middleware"
	"github.com/noah-isme/commerce-metrics-api/internal/service"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/response"
)

// PeriodDefaults fills period parameters a request leaves out.
type PeriodDefaults struct {
	CurrentYear    int
	ComparisonYear int
	FilterMonth    *int
}

// MetricsHandler exposes the metric bundles.
type MetricsHandler struct {
	facade    *service.MetricsFacadeService
	validator *validator.Validate
	defaults  PeriodDefaults
}

// NewMetricsHandler constructs the metrics handler.
func NewMetricsHandler(facade *service.MetricsFacadeService, validate *validator.Validate, defaults PeriodDefaults) *MetricsHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &MetricsHandler{facade: facade, validator: validate, defaults: defaults}
}

type period struct {
	current    int
	comparison int
	month      *int
	limit      int
}

func (h *MetricsHandler) period(c *gin.Context) (period, error) {
	var q dto.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return period{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	if err := h.validator.Struct(q); err != nil {
		return period{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}

	p := period{current: h.defaults.CurrentYear, comparison: h.defaults.ComparisonYear, month: h.defaults.FilterMonth, limit: q.Limit}
	if q.Year != 0 {
		p.current = q.Year
		p.comparison = q.Year - 1
	}
	if q.ComparisonYear != 0 {
		p.comparison = q.ComparisonYear
	}
	if q.Month != 0 {
		month := q.Month
		p.month = &month
	}
	return p, nil
}

func (h *MetricsHandler) respond(c *gin.Context, data interface{}, cacheHit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetSnapshotVersion(c, h.facade.Version())
	response.JSON(c, http.StatusOK, data, middleware.ExtractMeta(c))
}

// Revenue godoc
// @Summary Revenue comparison
// @Tags Metrics
// @Produce json
// @Param year query int false "Current year"
// @Param comparison_year query int false "Comparison year"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /metrics/revenue [get]
func (h *MetricsHandler) Revenue(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.Revenue(c.Request.Context(), p.current, p.comparison)
	h.respond(c, data, hit, err)
}

// AverageOrderValue godoc
// @Summary Average order value comparison
// @Tags Metrics
// @Produce json
// @Param year query int false "Current year"
// @Param comparison_year query int false "Comparison year"
// @Success 200 {object} response.Envelope
// @Router /metrics/aov [get]
func (h *MetricsHandler) AverageOrderValue(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.AverageOrderValue(c.Request.Context(), p.current, p.comparison)
	h.respond(c, data, hit, err)
}

// Orders godoc
// @Summary Distinct order count comparison
// @Tags Metrics
// @Produce json
// @Param year query int false "Current year"
// @Param comparison_year query int false "Comparison year"
// @Success 200 {object} response.Envelope
// @Router /metrics/orders [get]
func (h *MetricsHandler) Orders(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.OrderCount(c.Request.Context(), p.current, p.comparison)
	h.respond(c, data, hit, err)
}

// MonthlyGrowth godoc
// @Summary Month over month revenue growth
// @Tags Metrics
// @Produce json
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /metrics/monthly-growth [get]
func (h *MetricsHandler) MonthlyGrowth(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.MonthlyGrowth(c.Request.Context(), p.current)
	h.respond(c, data, hit, err)
}

// Categories godoc
// @Summary Revenue by product category
// @Tags Metrics
// @Produce json
// @Param year query int false "Year"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /metrics/categories [get]
func (h *MetricsHandler) Categories(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.Categories(c.Request.Context(), p.current, p.limit)
	h.respond(c, data, hit, err)
}

// States godoc
// @Summary Revenue by customer state
// @Tags Metrics
// @Produce json
// @Param year query int false "Year"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /metrics/states [get]
func (h *MetricsHandler) States(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.States(c.Request.Context(), p.current, p.limit)
	h.respond(c, data, hit, err)
}

// Delivery godoc
// @Summary Delivery speed and review scores
// @Tags Metrics
// @Produce json
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /metrics/delivery [get]
func (h *MetricsHandler) Delivery(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.Delivery(c.Request.Context(), p.current)
	h.respond(c, data, hit, err)
}

// OrderStatus godoc
// @Summary Order status distribution
// @Tags Metrics
// @Produce json
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /metrics/order-status [get]
func (h *MetricsHandler) OrderStatus(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.OrderStatus(c.Request.Context(), p.current)
	h.respond(c, data, hit, err)
}

// Summary godoc
// @Summary Business summary with every metric bundle
// @Tags Metrics
// @Produce json
// @Param year query int false "Current year"
// @Param comparison_year query int false "Comparison year"
// @Param month query int false "Calendar month filter"
// @Success 200 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, hit, err := h.facade.Summary(c.Request.Context(), metrics.SummaryParams{
		CurrentYear:    p.current,
		ComparisonYear: p.comparison,
		FilterMonth:    p.month,
	})
	h.respond(c, data, hit, err)
}

// Datasets godoc
// @Summary Loaded tables
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/datasets [get]
func (h *MetricsHandler) Datasets(c *gin.Context) {
	data, hit, err := h.facade.Datasets(c.Request.Context())
	h.respond(c, data, hit, err)
}
