package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
)

type stubSource struct {
	loads int32
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(context.Context) (*models.Snapshot, error) {
	atomic.AddInt32(&s.loads, 1)
	if s.err != nil {
		return nil, s.err
	}
	return commerceSnapshot(), nil
}

func ts(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 10, 0, 0, 0, time.UTC)
}

// commerceSnapshot holds two delivered orders in 2023 and one in 2022.
func commerceSnapshot() *models.Snapshot {
	d1 := ts(2023, 1, 4)
	d2 := ts(2023, 2, 12)
	sales := []models.Sale{
		models.NewSale("o1", "p1", decimal.NewFromInt(100), ts(2023, 1, 2), &d1),
		models.NewSale("o1", "p2", decimal.NewFromInt(50), ts(2023, 1, 2), &d1),
		models.NewSale("o2", "p2", decimal.NewFromInt(150), ts(2023, 2, 3), &d2),
		models.NewSale("o3", "p1", decimal.NewFromInt(120), ts(2022, 5, 5), nil),
	}
	orders := []models.Order{
		{OrderID: "o1", CustomerID: "c1", OrderStatus: "delivered", OrderPurchaseTimestamp: ts(2023, 1, 2)},
		{OrderID: "o2", CustomerID: "c2", OrderStatus: "delivered", OrderPurchaseTimestamp: ts(2023, 2, 3)},
		{OrderID: "o3", CustomerID: "c1", OrderStatus: "delivered", OrderPurchaseTimestamp: ts(2022, 5, 5)},
	}
	products := []models.Product{{ProductID: "p1", ProductCategoryName: "toys"}, {ProductID: "p2", ProductCategoryName: "books"}}
	customers := []models.Customer{{CustomerID: "c1", CustomerState: "SP"}, {CustomerID: "c2", CustomerState: "RJ"}}
	reviews := []models.Review{{OrderID: "o1", ReviewScore: 5}, {OrderID: "o2", ReviewScore: 3}}
	snapshot := models.NewSnapshot(sales, orders, products, customers, reviews)
	snapshot.Source = "stub"
	return snapshot
}

func TestSnapshotServiceUnavailableBeforeLoad(t *testing.T) {
	svc := NewSnapshotService(&stubSource{}, nil, nil, nil)

	_, err := svc.Current()
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
	_, err = svc.Info()
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
}

func TestSnapshotServiceReloadPublishesAndInvalidates(t *testing.T) {
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	metrics := NewMetricsService()
	svc := NewSnapshotService(&stubSource{}, cache, metrics, zaptest.NewLogger(t))
	versions := []string{"v1", "v2"}
	svc.version = func() string {
		v := versions[0]
		versions = versions[1:]
		return v
	}
	ctx := context.Background()

	first, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Version)
	require.NoError(t, cache.Set(ctx, SnapshotKey("v1", "revenue", 2023, 2022), 1, 0))

	second, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Version)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, second, current)
	assert.Zero(t, repo.size())

	info, err := svc.Info()
	require.NoError(t, err)
	assert.Equal(t, "v2", info.Version)
	assert.Equal(t, 4, info.Sales)
	assert.Equal(t, 3, info.Orders)
	assert.Equal(t, "v2", metrics.Snapshot().SnapshotVersion)
}

func TestSnapshotServiceFailedReloadKeepsPrevious(t *testing.T) {
	source := &stubSource{}
	svc := NewSnapshotService(source, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Reload(ctx)
	require.NoError(t, err)

	source.err = appErrors.NewDataError(models.TableOrders, models.ColOrderPurchaseTimestamp, 3, errors.New("bad timestamp"))
	_, err = svc.Reload(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrData)
	assert.Contains(t, err.Error(), "load snapshot from stub")

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestSnapshotServiceScheduledReload(t *testing.T) {
	source := &stubSource{}
	svc := NewSnapshotService(source, nil, nil, nil)
	queue := jobs.NewQueue("snapshots", svc.HandleJob, jobs.QueueConfig{})
	svc.AttachQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	id, err := svc.ScheduleReload(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, ok := svc.ReloadStatus(id)
		return ok && rec.Status == jobs.StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	_, err = svc.Current()
	assert.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.loads))
}

func TestSnapshotServiceInlineReloadWithoutQueue(t *testing.T) {
	svc := NewSnapshotService(&stubSource{}, nil, nil, nil)

	id, err := svc.ScheduleReload(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, ok := svc.ReloadStatus(id)
	assert.False(t, ok)

	_, err = svc.Current()
	assert.NoError(t, err)
}

func TestSnapshotServiceRejectsUnknownJobs(t *testing.T) {
	svc := NewSnapshotService(&stubSource{}, nil, nil, nil)
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{Type: "export"}))
}
