package handler

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/commerce-metrics-api/internal/dto"
	"github.com/noah-isme/commerce-metrics-api/internal/service"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
	"github.com/noah-isme/commerce-metrics-api/pkg/response"
)

// ExportHandler exposes leaderboard exports.
type ExportHandler struct {
	exports     *service.ExportService
	validator   *validator.Validate
	defaultYear int
	apiPrefix   string
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports *service.ExportService, validate *validator.Validate, defaultYear int, apiPrefix string) *ExportHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ExportHandler{exports: exports, validator: validate, defaultYear: defaultYear, apiPrefix: apiPrefix}
}

// Create godoc
// @Summary Schedule a CSV or PDF export of a metric view
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /metrics/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload"))
		return
	}

	id, err := h.exports.Schedule(c.Request.Context(), req.Params(h.defaultYear))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := jobs.StatusQueued
	if current, err := h.exports.Status(id); err == nil {
		status = current.Job.Status
	}
	response.Accepted(c, dto.JobResponse{
		ID:        id,
		Status:    status,
		StatusURL: fmt.Sprintf("%s/metrics/exports/%s", h.apiPrefix, id),
	})
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /metrics/exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	status, err := h.exports.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Download godoc
// @Summary Download a stored export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /metrics/exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, grant, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(grant.Path)))
	c.DataFromReader(http.StatusOK, info.Size(), service.ContentTypeFor(grant.Path), file, nil)
}
