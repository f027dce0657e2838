package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// RevenueMetrics compares total revenue between two years.
type RevenueMetrics struct {
	CurrentRevenue  decimal.Decimal `json:"current_revenue"`
	PreviousRevenue decimal.Decimal `json:"previous_revenue"`
	RevenueGrowth   float64         `json:"revenue_growth"`
}

// AOVMetrics compares average order value between two years.
type AOVMetrics struct {
	CurrentAOV  decimal.Decimal `json:"current_aov"`
	PreviousAOV decimal.Decimal `json:"previous_aov"`
	AOVGrowth   float64         `json:"aov_growth"`
}

// OrderCountMetrics compares distinct order counts between two years.
type OrderCountMetrics struct {
	CurrentOrders  int     `json:"current_orders"`
	PreviousOrders int     `json:"previous_orders"`
	OrderGrowth    float64 `json:"order_growth"`
}

// MonthlyGrowthPoint is one month of a trend. Growth is nil for the first month of the series.
type MonthlyGrowthPoint struct {
	Month   int             `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Growth  *float64        `json:"growth"`
}

// HasPrior reports whether the point has a predecessor to compare against.
func (p MonthlyGrowthPoint) HasPrior() bool {
	return p.Growth != nil
}

// Value returns the growth percentage, or NaN when the point has no predecessor.
func (p MonthlyGrowthPoint) Value() float64 {
	if p.Growth == nil {
		return math.NaN()
	}
	return *p.Growth
}

// MonthlyTrend is the month-over-month revenue change within one year.
type MonthlyTrend struct {
	Year   int                  `json:"year"`
	Points []MonthlyGrowthPoint `json:"points"`
}

// Values flattens the trend to growth percentages with NaN for missing predecessors.
func (t MonthlyTrend) Values() []float64 {
	values := make([]float64, len(t.Points))
	for i, p := range t.Points {
		values[i] = p.Value()
	}
	return values
}

// RankedValue is one entry of a leaderboard sorted descending by value.
type RankedValue struct {
	Key   string          `json:"key"`
	Value decimal.Decimal `json:"value"`
}

// DeliveryMetrics summarises delivery speed and the review scores per speed bucket.
type DeliveryMetrics struct {
	AvgDeliveryDays       float64 `json:"avg_delivery_days"`
	AvgReviewScore        float64 `json:"avg_review_score"`
	FastDeliveryScore     float64 `json:"fast_delivery_score"`
	StandardDeliveryScore float64 `json:"standard_delivery_score"`
	SlowDeliveryScore     float64 `json:"slow_delivery_score"`
	RatedDeliveries       int     `json:"rated_deliveries"`
}

// JoinStats records how many left rows an inner join kept and dropped.
type JoinStats struct {
	Name        string `json:"name"`
	LeftRows    int    `json:"left_rows"`
	RightRows   int    `json:"right_rows"`
	MatchedLeft int    `json:"matched_left"`
	DroppedLeft int    `json:"dropped_left"`
	OutputRows  int    `json:"output_rows"`
}

// BusinessSummary gathers every metric bundle for one (current, comparison, month) request.
type BusinessSummary struct {
	SnapshotVersion         string            `json:"snapshot_version"`
	CurrentYear             int               `json:"current_year"`
	ComparisonYear          int               `json:"comparison_year"`
	FilterMonth             *int              `json:"filter_month,omitempty"`
	Revenue                 RevenueMetrics    `json:"revenue"`
	AOV                     AOVMetrics        `json:"aov"`
	Orders                  OrderCountMetrics `json:"orders"`
	MonthlyGrowth           *MonthlyTrend     `json:"monthly_growth,omitempty"`
	CategoryPerformance     []RankedValue     `json:"category_performance"`
	GeographicPerformance   []RankedValue     `json:"geographic_performance"`
	DeliveryPerformance     DeliveryMetrics   `json:"delivery_performance"`
	OrderStatusDistribution []RankedValue     `json:"order_status_distribution"`
	Diagnostics             []JoinStats       `json:"diagnostics"`
	GeneratedAt             time.Time         `json:"generated_at"`
}

// DateRange bounds the purchase timestamps of a table.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DatasetSummary describes one loaded table.
type DatasetSummary struct {
	Name      string     `json:"name"`
	Rows      int        `json:"rows"`
	Columns   int        `json:"columns"`
	DateRange *DateRange `json:"date_range,omitempty"`
}

// SystemMetrics represents process level instrumentation captured by the metrics service.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BundleCount              uint64    `json:"bundle_count"`
	AverageBundleDurationMs  float64   `json:"average_bundle_duration_ms"`
	JoinRowsDropped          uint64    `json:"join_rows_dropped"`
	SnapshotVersion          string    `json:"snapshot_version"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
