package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/commerce-metrics-api/internal/service"
	"github.com/noah-isme/commerce-metrics-api/pkg/response"
)

// SystemHandler exposes observability endpoints.
type SystemHandler struct {
	metrics   *service.MetricsService
	snapshots *service.SnapshotService
}

// NewSystemHandler constructs a system handler.
func NewSystemHandler(metrics *service.MetricsService, snapshots *service.SnapshotService) *SystemHandler {
	return &SystemHandler{metrics: metrics, snapshots: snapshots}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *SystemHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness checks.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports ready once a snapshot has been published.
func (h *SystemHandler) Ready(c *gin.Context) {
	info, err := h.snapshots.Info()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "snapshot_version": info.Version})
}

// System godoc
// @Summary Process instrumentation snapshot
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/system [get]
func (h *SystemHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot())
}
