package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/commerce-metrics-api/internal/dto"
	"github.com/noah-isme/commerce-metrics-api/internal/service"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
	"github.com/noah-isme/commerce-metrics-api/pkg/response"
)

// SnapshotHandler exposes the dataset snapshot lifecycle.
type SnapshotHandler struct {
	snapshots *service.SnapshotService
	apiPrefix string
}

// NewSnapshotHandler constructs the snapshot handler.
func NewSnapshotHandler(snapshots *service.SnapshotService, apiPrefix string) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots, apiPrefix: apiPrefix}
}

// Current godoc
// @Summary Active snapshot
// @Tags Snapshots
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /snapshots/current [get]
func (h *SnapshotHandler) Current(c *gin.Context) {
	info, err := h.snapshots.Info()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info)
}

// Reload godoc
// @Summary Reload the dataset snapshot
// @Tags Snapshots
// @Produce json
// @Security BearerAuth
// @Success 202 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /snapshots/reload [post]
func (h *SnapshotHandler) Reload(c *gin.Context) {
	id, err := h.snapshots.ScheduleReload(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	status := jobs.StatusSucceeded
	if rec, ok := h.snapshots.ReloadStatus(id); ok {
		status = rec.Status
	}
	response.Accepted(c, dto.JobResponse{
		ID:        id,
		Status:    status,
		StatusURL: fmt.Sprintf("%s/snapshots/reload/%s", h.apiPrefix, id),
	})
}

// ReloadStatus godoc
// @Summary Snapshot reload job status
// @Tags Snapshots
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reload job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /snapshots/reload/{id} [get]
func (h *SnapshotHandler) ReloadStatus(c *gin.Context) {
	rec, ok := h.snapshots.ReloadStatus(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "reload job not found"))
		return
	}
	response.JSON(c, http.StatusOK, rec)
}
