package models

import "time"

// ExportKind names the metric view an export renders.
type ExportKind string

const (
	ExportCategories  ExportKind = "categories"
	ExportStates      ExportKind = "states"
	ExportOrderStatus ExportKind = "order_status"
	ExportSummary     ExportKind = "summary"
)

// ExportParams selects what an export renders.
type ExportParams struct {
	Kind           ExportKind `json:"kind"`
	Format         string     `json:"format"`
	Year           int        `json:"year"`
	ComparisonYear int        `json:"comparison_year,omitempty"`
	Limit          int        `json:"limit,omitempty"`
}

// ExportResult describes a stored export and how to download it.
type ExportResult struct {
	ID        string     `json:"id"`
	Kind      ExportKind `json:"kind"`
	Format    string     `json:"format"`
	Rows      int        `json:"rows"`
	Token     string     `json:"token"`
	URL       string     `json:"url"`
	ExpiresAt time.Time  `json:"expires_at"`
}
