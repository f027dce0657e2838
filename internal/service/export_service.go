package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/metrics"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/export"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
	"github.com/noah-isme/commerce-metrics-api/pkg/storage"
)

// JobTypeExport identifies export jobs on the background queue.
const JobTypeExport = "metrics_export"

type exportMetrics interface {
	Categories(ctx context.Context, year, limit int) ([]models.RankedValue, bool, error)
	States(ctx context.Context, year, limit int) ([]models.RankedValue, bool, error)
	OrderStatus(ctx context.Context, year int) ([]models.RankedValue, bool, error)
	Summary(ctx context.Context, params metrics.SummaryParams) (*models.BusinessSummary, bool, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportStatus is the state of a scheduled export.
type ExportStatus struct {
	Job    jobs.Record          `json:"job"`
	Result *models.ExportResult `json:"result,omitempty"`
}

// ExportService renders metric leaderboards to CSV or PDF and hands out signed download tokens.
type ExportService struct {
	metrics exportMetrics
	storage fileStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig

	queue   *jobs.Queue
	results sync.Map
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(metricsSvc exportMetrics, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		metrics: metricsSvc,
		storage: store,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// AttachQueue routes Schedule through queue. The queue handler must be HandleJob.
func (s *ExportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Validate checks params before any work is done.
func (s *ExportService) Validate(params models.ExportParams) error {
	if _, err := export.RendererFor(export.Format(params.Format)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	switch params.Kind {
	case models.ExportCategories, models.ExportStates, models.ExportOrderStatus, models.ExportSummary:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export kind %q", params.Kind))
	}
}

// Generate renders and stores an export synchronously.
func (s *ExportService) Generate(ctx context.Context, params models.ExportParams) (*models.ExportResult, error) {
	return s.generate(ctx, uuid.NewString(), params)
}

// Schedule enqueues an export and returns the job id. Without a queue the export runs inline and
// its result is available immediately.
func (s *ExportService) Schedule(ctx context.Context, params models.ExportParams) (string, error) {
	if err := s.Validate(params); err != nil {
		return "", err
	}
	if s.queue == nil {
		result, err := s.Generate(ctx, params)
		if err != nil {
			return "", err
		}
		s.results.Store(result.ID, result)
		return result.ID, nil
	}
	return s.queue.Enqueue(jobs.Job{Type: JobTypeExport, Payload: params})
}

// Status reports a scheduled export.
func (s *ExportService) Status(id string) (ExportStatus, error) {
	var status ExportStatus
	if s.queue != nil {
		rec, ok := s.queue.Lookup(id)
		if !ok {
			return status, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		status.Job = rec
	}
	if value, ok := s.results.Load(id); ok {
		status.Result = value.(*models.ExportResult)
		if s.queue == nil {
			status.Job = jobs.Record{ID: id, Type: JobTypeExport, Status: jobs.StatusSucceeded}
		}
	} else if s.queue == nil {
		return status, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return status, nil
}

// HandleJob is the queue handler for export jobs.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeExport {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	params, ok := job.Payload.(models.ExportParams)
	if !ok {
		return fmt.Errorf("export job %s: unexpected payload %T", job.ID, job.Payload)
	}
	result, err := s.generate(ctx, job.ID, params)
	if err != nil {
		return err
	}
	s.results.Store(job.ID, result)
	return nil
}

// Open validates token and opens the file it grants access to.
func (s *ExportService) Open(token string) (*os.File, storage.Grant, error) {
	grant, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, grant, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link expired")
		}
		return nil, grant, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download link")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, grant, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return file, grant, nil
}

// ContentTypeFor returns the MIME type of a stored export path.
func ContentTypeFor(path string) string {
	renderer, err := export.RendererFor(export.Format(strings.TrimPrefix(filepath.Ext(path), ".")))
	if err != nil {
		return "application/octet-stream"
	}
	return renderer.ContentType()
}

// Cleanup removes exports older than ttl, or the configured result TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

func (s *ExportService) generate(ctx context.Context, id string, params models.ExportParams) (*models.ExportResult, error) {
	if err := s.Validate(params); err != nil {
		return nil, err
	}
	renderer, _ := export.RendererFor(export.Format(params.Format))

	dataset, err := s.buildDataset(ctx, params)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.filename(id, params), payload)
	if err != nil {
		return nil, err
	}
	token, grant, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export stored",
		zap.String("export_id", id),
		zap.String("kind", string(params.Kind)),
		zap.String("format", params.Format),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &models.ExportResult{
		ID:        id,
		Kind:      params.Kind,
		Format:    params.Format,
		Rows:      len(dataset.Rows),
		Token:     token,
		URL:       fmt.Sprintf("%s/metrics/exports/download/%s", prefix, token),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

func (s *ExportService) filename(id string, params models.ExportParams) string {
	stamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%d_%s_%s.%s", stamp[:8], params.Kind, params.Year, stamp, id[:8], params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, params models.ExportParams) (export.Dataset, error) {
	switch params.Kind {
	case models.ExportCategories:
		ranked, _, err := s.metrics.Categories(ctx, params.Year, params.Limit)
		if err != nil {
			return export.Dataset{}, err
		}
		return rankedDataset(fmt.Sprintf("Category performance %d", params.Year), "category", "revenue", ranked), nil
	case models.ExportStates:
		ranked, _, err := s.metrics.States(ctx, params.Year, params.Limit)
		if err != nil {
			return export.Dataset{}, err
		}
		return rankedDataset(fmt.Sprintf("Revenue by state %d", params.Year), "state", "revenue", ranked), nil
	case models.ExportOrderStatus:
		ranked, _, err := s.metrics.OrderStatus(ctx, params.Year)
		if err != nil {
			return export.Dataset{}, err
		}
		return rankedDataset(fmt.Sprintf("Order status distribution %d", params.Year), "status", "percentage", ranked), nil
	case models.ExportSummary:
		return s.summaryDataset(ctx, params)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported export kind %q", params.Kind)
	}
}

func rankedDataset(title, keyHeader, valueHeader string, ranked []models.RankedValue) export.Dataset {
	rows := make([][]string, 0, len(ranked))
	for i, r := range ranked {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Key, r.Value.StringFixed(2)})
	}
	return export.Dataset{Title: title, Headers: []string{"rank", keyHeader, valueHeader}, Rows: rows}
}

func (s *ExportService) summaryDataset(ctx context.Context, params models.ExportParams) (export.Dataset, error) {
	comparison := params.ComparisonYear
	if comparison == 0 {
		comparison = params.Year - 1
	}
	summary, _, err := s.metrics.Summary(ctx, metrics.SummaryParams{CurrentYear: params.Year, ComparisonYear: comparison})
	if err != nil {
		return export.Dataset{}, err
	}
	d := summary.DeliveryPerformance
	rows := [][]string{
		{"Total revenue", metrics.FormatCurrency(summary.Revenue.CurrentRevenue), metrics.FormatCurrency(summary.Revenue.PreviousRevenue),
			metrics.FormatTrend(summary.Revenue.CurrentRevenue, summary.Revenue.PreviousRevenue)},
		{"Average order value", metrics.FormatCurrency(summary.AOV.CurrentAOV), metrics.FormatCurrency(summary.AOV.PreviousAOV),
			metrics.FormatTrend(summary.AOV.CurrentAOV, summary.AOV.PreviousAOV)},
		{"Total orders", strconv.Itoa(summary.Orders.CurrentOrders), strconv.Itoa(summary.Orders.PreviousOrders),
			metrics.FormatTrend(decimal.NewFromInt(int64(summary.Orders.CurrentOrders)), decimal.NewFromInt(int64(summary.Orders.PreviousOrders)))},
		{"Average delivery days", fmt.Sprintf("%.1f", d.AvgDeliveryDays), "", ""},
		{"Average review score", fmt.Sprintf("%.2f", d.AvgReviewScore), "", ""},
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Business summary %d vs %d", params.Year, comparison),
		Headers: []string{"metric", strconv.Itoa(params.Year), strconv.Itoa(comparison), "trend"},
		Rows:    rows,
	}, nil
}
