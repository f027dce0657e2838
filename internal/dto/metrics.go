package dto

import (
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
)

// PeriodQuery captures the period parameters shared by metric endpoints. Zero values fall back
// to the configured defaults.
type PeriodQuery struct {
	Year           int `form:"year" validate:"omitempty,min=1900,max=2100"`
	ComparisonYear int `form:"comparison_year" validate:"omitempty,min=1900,max=2100"`
	Month          int `form:"month" validate:"omitempty,min=1,max=12"`
	Limit          int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// ExportRequest captures POST /metrics/exports payload.
type ExportRequest struct {
	Kind           string `json:"kind" validate:"required,oneof=categories states order_status summary"`
	Format         string `json:"format" validate:"required,oneof=csv pdf"`
	Year           int    `json:"year" validate:"omitempty,min=1900,max=2100"`
	ComparisonYear int    `json:"comparison_year" validate:"omitempty,min=1900,max=2100"`
	Limit          int    `json:"limit" validate:"omitempty,min=1,max=1000"`
}

// Params converts the request into export params, filling the year from defaultYear.
func (r ExportRequest) Params(defaultYear int) models.ExportParams {
	year := r.Year
	if year == 0 {
		year = defaultYear
	}
	return models.ExportParams{
		Kind:           models.ExportKind(r.Kind),
		Format:         r.Format,
		Year:           year,
		ComparisonYear: r.ComparisonYear,
		Limit:          r.Limit,
	}
}

// JobResponse is returned after enqueueing background work.
type JobResponse struct {
	ID        string      `json:"id"`
	Status    jobs.Status `json:"status"`
	StatusURL string      `json:"status_url"`
}
