package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/commerce-metrics-api/internal/loader"
	"github.com/noah-isme/commerce-metrics-api/internal/models"
	appErrors "github.com/noah-isme/commerce-metrics-api/pkg/errors"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
)

// JobTypeSnapshotReload identifies reload jobs on the background queue.
const JobTypeSnapshotReload = "snapshot_reload"

// SnapshotInfo describes the active snapshot.
type SnapshotInfo struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Sales    int       `json:"sales"`
	Orders   int       `json:"orders"`
}

// SnapshotService owns the active dataset snapshot. Readers always see a complete snapshot; a
// reload replaces it wholesale.
type SnapshotService struct {
	source  loader.Source
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger

	current  atomic.Pointer[models.Snapshot]
	reloadMu sync.Mutex
	queue    *jobs.Queue
	version  func() string
}

// NewSnapshotService constructs a snapshot service reading from source.
func NewSnapshotService(source loader.Source, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		source:  source,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		version: uuid.NewString,
	}
}

// AttachQueue routes ScheduleReload through queue. The queue handler must be HandleJob.
func (s *SnapshotService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Current returns the active snapshot or ErrUnavailable before the first successful load.
func (s *SnapshotService) Current() (*models.Snapshot, error) {
	snapshot := s.current.Load()
	if snapshot == nil {
		return nil, appErrors.ErrUnavailable
	}
	return snapshot, nil
}

// Info summarises the active snapshot.
func (s *SnapshotService) Info() (SnapshotInfo, error) {
	snapshot, err := s.Current()
	if err != nil {
		return SnapshotInfo{}, err
	}
	return SnapshotInfo{
		Version:  snapshot.Version,
		Source:   snapshot.Source,
		LoadedAt: snapshot.LoadedAt,
		Sales:    snapshot.Sales.Len(),
		Orders:   snapshot.Orders.Len(),
	}, nil
}

// Reload loads a fresh snapshot and publishes it. On failure the previous snapshot stays active.
// Concurrent reloads are serialised.
func (s *SnapshotService) Reload(ctx context.Context) (*models.Snapshot, error) {
	if s.source == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "no data source configured")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	snapshot, err := s.source.Load(ctx)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveSnapshotLoad(s.source.Name(), elapsed, nil)
		s.logger.Error("snapshot load failed", zap.String("source", s.source.Name()), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, fmt.Errorf("load snapshot from %s: %w", s.source.Name(), err)
	}
	snapshot.Version = s.version()
	s.metrics.ObserveSnapshotLoad(s.source.Name(), elapsed, snapshot)

	previous := s.current.Swap(snapshot)
	s.logger.Info("snapshot published",
		zap.String("version", snapshot.Version),
		zap.String("source", snapshot.Source),
		zap.Int("sales", snapshot.Sales.Len()),
		zap.Int("orders", snapshot.Orders.Len()),
		zap.Duration("elapsed", elapsed),
	)
	if previous != nil {
		if err := s.cache.InvalidateSnapshot(ctx, previous.Version); err != nil {
			s.logger.Warn("stale snapshot cache not cleared", zap.String("version", previous.Version), zap.Error(err))
		}
	}
	return snapshot, nil
}

// ScheduleReload enqueues a reload job and returns its id. Without a queue the reload runs inline.
func (s *SnapshotService) ScheduleReload(ctx context.Context) (string, error) {
	if s.queue == nil {
		id := uuid.NewString()
		if _, err := s.Reload(ctx); err != nil {
			return "", err
		}
		return id, nil
	}
	return s.queue.Enqueue(jobs.Job{Type: JobTypeSnapshotReload})
}

// ReloadStatus reports a scheduled reload job.
func (s *SnapshotService) ReloadStatus(id string) (jobs.Record, bool) {
	if s.queue == nil {
		return jobs.Record{}, false
	}
	return s.queue.Lookup(id)
}

// HandleJob is the queue handler for reload jobs.
func (s *SnapshotService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeSnapshotReload {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	_, err := s.Reload(ctx)
	return err
}
