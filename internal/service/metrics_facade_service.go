package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

// SnapshotProvider exposes the active snapshot.
type SnapshotProvider interface {
	Current() (*models.Snapshot, error)
}

// FacadeConfig tunes MetricsFacadeService.
type FacadeConfig struct {
	DateColumn string
	// Timeout bounds a business summary computation.
	Timeout  time.Duration
	CacheTTL time.Duration
}

// MetricsFacadeService runs metric bundles over the active snapshot with caching and instrumentation.
// The boolean returned by every bundle reports whether it came from cache.
type MetricsFacadeService struct {
	snapshots SnapshotProvider
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       FacadeConfig
}

// NewMetricsFacadeService constructs the facade service.
func NewMetricsFacadeService(snapshots SnapshotProvider, cache *CacheService, metricsSvc *MetricsService, logger *zap.Logger, cfg FacadeConfig) *MetricsFacadeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &MetricsFacadeService{snapshots: snapshots, cache: cache, metrics: metricsSvc, logger: logger, cfg: cfg}
}

// Version returns the active snapshot version, or "" before the first load.
func (s *MetricsFacadeService) Version() string {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return ""
	}
	return snapshot.Version
}

func (s *MetricsFacadeService) pipeline() (*metrics.Pipeline, *models.Snapshot, error) {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return nil, nil, err
	}
	p := metrics.NewPipeline(snapshot, metrics.Options{
		DateColumn: s.cfg.DateColumn,
		Logger:     s.logger,
		OnJoin:     s.metrics.ObserveJoin,
		OnBundle:   s.metrics.ObserveBundle,
	})
	return p, snapshot, nil
}

// cachedBundle serves key from cache or computes and stores it.
func cachedBundle[T any](ctx context.Context, s *MetricsFacadeService, kind string, parts []interface{}, compute func(*metrics.Pipeline) (T, error)) (T, bool, error) {
	var zero T
	p, snapshot, err := s.pipeline()
	if err != nil {
		return zero, false, err
	}
	key := SnapshotKey(snapshot.Version, kind, parts...)

	var cached T
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	start := time.Now()
	value, err := compute(p)
	s.metrics.ObserveBundle(kind, time.Since(start), err)
	if err != nil {
		return zero, false, err
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache bundle", zap.String("bundle", kind), zap.Error(err))
	}
	return value, false, nil
}

// Revenue compares revenue between two years.
func (s *MetricsFacadeService) Revenue(ctx context.Context, currentYear, comparisonYear int) (models.RevenueMetrics, bool, error) {
	return cachedBundle(ctx, s, "revenue", []interface{}{currentYear, comparisonYear}, func(p *metrics.Pipeline) (models.RevenueMetrics, error) {
		return p.RevenueMetrics(currentYear, comparisonYear)
	})
}

// AverageOrderValue compares AOV between two years.
func (s *MetricsFacadeService) AverageOrderValue(ctx context.Context, currentYear, comparisonYear int) (models.AOVMetrics, bool, error) {
	return cachedBundle(ctx, s, "aov", []interface{}{currentYear, comparisonYear}, func(p *metrics.Pipeline) (models.AOVMetrics, error) {
		return p.AverageOrderValue(currentYear, comparisonYear)
	})
}

// OrderCount compares distinct order counts between two years.
func (s *MetricsFacadeService) OrderCount(ctx context.Context, currentYear, comparisonYear int) (models.OrderCountMetrics, bool, error) {
	return cachedBundle(ctx, s, "orders", []interface{}{currentYear, comparisonYear}, func(p *metrics.Pipeline) (models.OrderCountMetrics, error) {
		return p.OrderCountMetrics(currentYear, comparisonYear)
	})
}

// MonthlyGrowth returns the month over month revenue trend of year.
func (s *MetricsFacadeService) MonthlyGrowth(ctx context.Context, year int) (models.MonthlyTrend, bool, error) {
	return cachedBundle(ctx, s, "monthly_growth", []interface{}{year}, func(p *metrics.Pipeline) (models.MonthlyTrend, error) {
		return p.MonthlyGrowthTrend(year)
	})
}

// Categories ranks product categories by revenue. A positive limit truncates the leaderboard.
func (s *MetricsFacadeService) Categories(ctx context.Context, year, limit int) ([]models.RankedValue, bool, error) {
	ranked, hit, err := cachedBundle(ctx, s, "categories", []interface{}{year}, func(p *metrics.Pipeline) ([]models.RankedValue, error) {
		return p.CategoryPerformance(year)
	})
	return truncate(ranked, limit), hit, err
}

// States ranks customer states by revenue. A positive limit truncates the leaderboard.
func (s *MetricsFacadeService) States(ctx context.Context, year, limit int) ([]models.RankedValue, bool, error) {
	ranked, hit, err := cachedBundle(ctx, s, "states", []interface{}{year}, func(p *metrics.Pipeline) ([]models.RankedValue, error) {
		return p.GeographicPerformance(year)
	})
	return truncate(ranked, limit), hit, err
}

// Delivery returns delivery speed and review metrics of year.
func (s *MetricsFacadeService) Delivery(ctx context.Context, year int) (models.DeliveryMetrics, bool, error) {
	return cachedBundle(ctx, s, "delivery", []interface{}{year}, func(p *metrics.Pipeline) (models.DeliveryMetrics, error) {
		return p.DeliveryPerformanceMetrics(year)
	})
}

// OrderStatus returns the status distribution of orders purchased in year.
func (s *MetricsFacadeService) OrderStatus(ctx context.Context, year int) ([]models.RankedValue, bool, error) {
	return cachedBundle(ctx, s, "order_status", []interface{}{year}, func(p *metrics.Pipeline) ([]models.RankedValue, error) {
		return p.OrderStatusDistribution(year)
	})
}

// Summary computes every bundle within the configured timeout.
func (s *MetricsFacadeService) Summary(ctx context.Context, params metrics.SummaryParams) (*models.BusinessSummary, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	parts := []interface{}{params.CurrentYear, params.ComparisonYear, params.FilterMonth}
	summary, hit, err := cachedBundle(ctx, s, "summary", parts, func(p *metrics.Pipeline) (*models.BusinessSummary, error) {
		return p.BusinessSummary(ctx, params)
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	}
	return summary, hit, err
}

// Datasets describes the tables of the active snapshot.
func (s *MetricsFacadeService) Datasets(ctx context.Context) ([]models.DatasetSummary, bool, error) {
	return cachedBundle(ctx, s, "datasets", nil, func(p *metrics.Pipeline) ([]models.DatasetSummary, error) {
		return p.DatasetSummaries()
	})
}

func truncate(ranked []models.RankedValue, limit int) []models.RankedValue {
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}
