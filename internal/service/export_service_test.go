package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
	"github.com/noah-isme/commerce-metrics-api/pkg/storage"
)

type stubExportMetrics struct {
	ranked  []models.RankedValue
	summary *models.BusinessSummary
	limit   int
}

func (s *stubExportMetrics) Categories(_ context.Context, _ int, limit int) ([]models.RankedValue, bool, error) {
	s.limit = limit
	return s.ranked, false, nil
}

func (s *stubExportMetrics) States(_ context.Context, _ int, limit int) ([]models.RankedValue, bool, error) {
	s.limit = limit
	return s.ranked, false, nil
}

func (s *stubExportMetrics) OrderStatus(context.Context, int) ([]models.RankedValue, bool, error) {
	return s.ranked, false, nil
}

func (s *stubExportMetrics) Summary(_ context.Context, params metrics.SummaryParams) (*models.BusinessSummary, bool, error) {
	if s.summary == nil {
		return nil, false, appErrors.ErrUnavailable
	}
	out := *s.summary
	out.CurrentYear = params.CurrentYear
	out.ComparisonYear = params.ComparisonYear
	return &out, false, nil
}

func newExportService(t *testing.T) (*ExportService, *stubExportMetrics) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	stub := &stubExportMetrics{
		ranked: []models.RankedValue{
			{Key: "garden", Value: decimal.RequireFromString("200.5")},
			{Key: "toys", Value: decimal.NewFromInt(100)},
		},
		summary: &models.BusinessSummary{
			Revenue: models.RevenueMetrics{CurrentRevenue: decimal.NewFromInt(1500000), PreviousRevenue: decimal.NewFromInt(1000000), RevenueGrowth: 50},
			Orders:  models.OrderCountMetrics{CurrentOrders: 10, PreviousOrders: 0},
		},
	}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(stub, store, signer, ExportConfig{APIPrefix: "/api/v1/"}, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, stub
}

func readExport(t *testing.T, svc *ExportService, token string) string {
	t.Helper()
	file, _, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	return string(raw)
}

func TestExportServiceGeneratesCSVLeaderboard(t *testing.T) {
	svc, stub := newExportService(t)

	result, err := svc.Generate(context.Background(), models.ExportParams{Kind: models.ExportCategories, Format: "csv", Year: 2023, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, 5, stub.limit)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/metrics/exports/download/"))

	body := readExport(t, svc, result.Token)
	assert.Equal(t, "rank,category,revenue\n1,garden,200.50\n2,toys,100.00\n", body)
}

func TestExportServiceSummaryDataset(t *testing.T) {
	svc, _ := newExportService(t)

	result, err := svc.Generate(context.Background(), models.ExportParams{Kind: models.ExportSummary, Format: "csv", Year: 2023})
	require.NoError(t, err)

	body := readExport(t, svc, result.Token)
	assert.Contains(t, body, "metric,2023,2022,trend\n")
	assert.Contains(t, body, "Total revenue,$1.5M,$1.0M,↗ 50.00%\n")
	assert.Contains(t, body, "Total orders,10,0,N/A\n")
}

func TestExportServicePDF(t *testing.T) {
	svc, _ := newExportService(t)

	result, err := svc.Generate(context.Background(), models.ExportParams{Kind: models.ExportStates, Format: "pdf", Year: 2023})
	require.NoError(t, err)

	file, grant, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "application/pdf", ContentTypeFor(grant.Path))
	assert.Equal(t, result.ID, grant.ExportID)
}

func TestExportServiceValidation(t *testing.T) {
	svc, _ := newExportService(t)

	err := svc.Validate(models.ExportParams{Kind: models.ExportCategories, Format: "xlsx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	err = svc.Validate(models.ExportParams{Kind: "customers", Format: "csv"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceRejectsBadTokens(t *testing.T) {
	svc, _ := newExportService(t)

	_, _, err := svc.Open("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestExportServiceScheduledThroughQueue(t *testing.T) {
	svc, _ := newExportService(t)
	queue := jobs.NewQueue("exports", svc.HandleJob, jobs.QueueConfig{})
	svc.AttachQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	id, err := svc.Schedule(context.Background(), models.ExportParams{Kind: models.ExportOrderStatus, Format: "csv", Year: 2023})
	require.NoError(t, err)

	var status ExportStatus
	require.Eventually(t, func() bool {
		status, err = svc.Status(id)
		return err == nil && status.Job.Status == jobs.StatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, status.Result)
	assert.Equal(t, id, status.Result.ID)

	_, err = svc.Status("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportServiceInlineSchedule(t *testing.T) {
	svc, _ := newExportService(t)

	id, err := svc.Schedule(context.Background(), models.ExportParams{Kind: models.ExportCategories, Format: "csv", Year: 2023})
	require.NoError(t, err)

	status, err := svc.Status(id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, status.Job.Status)
	require.NotNil(t, status.Result)

	_, err = svc.Schedule(context.Background(), models.ExportParams{Kind: models.ExportCategories, Format: "doc", Year: 2023})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceCleanup(t *testing.T) {
	svc, _ := newExportService(t)
	_, err := svc.Generate(context.Background(), models.ExportParams{Kind: models.ExportCategories, Format: "csv", Year: 2023})
	require.NoError(t, err)

	removed, err := svc.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
