package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
)

type fixedSnapshot struct {
	snapshot *models.Snapshot
}

func (f fixedSnapshot) Current() (*models.Snapshot, error) {
	if f.snapshot == nil {
		return nil, appErrors.ErrUnavailable
	}
	return f.snapshot, nil
}

func newFacade(t *testing.T, cacheEnabled bool) (*MetricsFacadeService, *memoryCache, *MetricsService) {
	t.Helper()
	snapshot := commerceSnapshot()
	snapshot.Version = "v1"
	repo := newMemoryCache()
	metricsSvc := NewMetricsService()
	cache := NewCacheService(repo, metricsSvc, time.Minute, nil, cacheEnabled)
	svc := NewMetricsFacadeService(fixedSnapshot{snapshot: snapshot}, cache, metricsSvc, nil, FacadeConfig{})
	return svc, repo, metricsSvc
}

func TestFacadeServiceRevenueCachesPerSnapshot(t *testing.T) {
	svc, repo, metricsSvc := newFacade(t, true)
	ctx := context.Background()

	first, hit, err := svc.Revenue(ctx, 2023, 2022)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "300", first.CurrentRevenue.String())
	assert.Equal(t, "120", first.PreviousRevenue.String())
	assert.InDelta(t, 150.0, first.RevenueGrowth, 1e-9)
	_, stored := repo.data["snapshot:v1:revenue:2023:2022"]
	assert.True(t, stored)

	second, hit, err := svc.Revenue(ctx, 2023, 2022)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, first.CurrentRevenue.Equal(second.CurrentRevenue))

	assert.Equal(t, uint64(1), metricsSvc.Snapshot().BundleCount)
}

func TestFacadeServiceLeaderboardLimit(t *testing.T) {
	svc, _, _ := newFacade(t, false)
	ctx := context.Background()

	all, _, err := svc.Categories(ctx, 2023, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "books", all[0].Key)
	assert.Equal(t, "200", all[0].Value.String())

	top, _, err := svc.Categories(ctx, 2023, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	states, _, err := svc.States(ctx, 2023, 5)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestFacadeServiceSummary(t *testing.T) {
	svc, _, metricsSvc := newFacade(t, true)

	summary, hit, err := svc.Summary(context.Background(), metrics.SummaryParams{CurrentYear: 2023, ComparisonYear: 2022})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v1", summary.SnapshotVersion)
	assert.Equal(t, 2, summary.Orders.CurrentOrders)
	require.NotNil(t, summary.MonthlyGrowth)
	assert.Len(t, summary.MonthlyGrowth.Points, 2)
	assert.NotEmpty(t, summary.Diagnostics)

	// eight bundles plus the summary itself
	assert.Equal(t, uint64(9), metricsSvc.Snapshot().BundleCount)

	cached, hit, err := svc.Summary(context.Background(), metrics.SummaryParams{CurrentYear: 2023, ComparisonYear: 2022})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, summary.Revenue.CurrentRevenue.Equal(cached.Revenue.CurrentRevenue))
}

func TestFacadeServiceOtherBundles(t *testing.T) {
	svc, _, _ := newFacade(t, false)
	ctx := context.Background()

	aov, _, err := svc.AverageOrderValue(ctx, 2023, 2022)
	require.NoError(t, err)
	assert.Equal(t, "150", aov.CurrentAOV.String())

	orders, _, err := svc.OrderCount(ctx, 2023, 2022)
	require.NoError(t, err)
	assert.Equal(t, 2, orders.CurrentOrders)
	assert.Equal(t, 1, orders.PreviousOrders)

	trend, _, err := svc.MonthlyGrowth(ctx, 2023)
	require.NoError(t, err)
	require.Len(t, trend.Points, 2)
	assert.False(t, trend.Points[0].HasPrior())
	assert.InDelta(t, 0.0, trend.Points[1].Value(), 1e-9)

	delivery, _, err := svc.Delivery(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, 2, delivery.RatedDeliveries)

	status, _, err := svc.OrderStatus(ctx, 2023)
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, "delivered", status[0].Key)

	datasets, _, err := svc.Datasets(ctx)
	require.NoError(t, err)
	assert.Len(t, datasets, 5)
}

func TestFacadeServiceWithoutSnapshot(t *testing.T) {
	svc := NewMetricsFacadeService(fixedSnapshot{}, nil, nil, nil, FacadeConfig{})
	_, _, err := svc.Revenue(context.Background(), 2023, 2022)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestFacadeServiceHonoursCancellation(t *testing.T) {
	svc, _, _ := newFacade(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Summary(ctx, metrics.SummaryParams{CurrentYear: 2023, ComparisonYear: 2022})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFacadeServiceSummaryTimeout(t *testing.T) {
	svc, _, _ := newFacade(t, false)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, _, err := svc.Summary(ctx, metrics.SummaryParams{CurrentYear: 2023, ComparisonYear: 2022})
	assert.ErrorIs(t, err, appErrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
