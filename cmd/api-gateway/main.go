package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/commerce-metrics-api/api/swagger"
	"github.com/noah-isme/commerce-metrics-api/internal/handler"
	"github.com/noah-isme/commerce-metrics-api/internal/loader"
	internalmiddleware "github.com/noah-isme/commerce-metrics-api/internal/middleware"
	"github.com/noah-isme/commerce-metrics-api/internal/repository"
	"github.com/noah-isme/commerce-metrics-api/internal/service"
	"github.com/noah-isme/commerce-metrics-api/pkg/cache"
	"github.com/noah-isme/commerce-metrics-api/pkg/config"
	"github.com/noah-isme/commerce-metrics-api/pkg/database"
	"github.com/noah-isme/commerce-metrics-api/pkg/jobs"
	"github.com/noah-isme/commerce-metrics-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/commerce-metrics-api/pkg/middleware/cors"
	"github.com/noah-isme/commerce-metrics-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/commerce-metrics-api/pkg/middleware/requestid"
	"github.com/noah-isme/commerce-metrics-api/pkg/storage"
)

// @title Commerce Metrics API
// @version 1.0.0
// @description Revenue, order and delivery metrics computed from an e-commerce dataset snapshot
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	decimal.MarshalJSONWithoutQuotes = true

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, db, err := newSource(cfg, logr)
	if err != nil {
		logr.Fatal("data source init failed", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc, redisClient := newCache(cfg, metricsSvc, logr)
	if redisClient != nil {
		defer redisClient.Close()
	}

	snapshots := service.NewSnapshotService(source, cacheSvc, metricsSvc, logr)
	reloadQueue := jobs.NewQueue("snapshot-reload", snapshots.HandleJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	reloadQueue.Start(ctx)
	defer reloadQueue.Stop()
	snapshots.AttachQueue(reloadQueue)

	if cfg.Data.LoadOnStart {
		loadCtx, cancel := context.WithTimeout(ctx, cfg.Data.LoadTimeout)
		if _, err := snapshots.Reload(loadCtx); err != nil {
			logr.Error("initial snapshot load failed, serving 503 until a reload succeeds", zap.Error(err))
		}
		cancel()
	}

	facade := service.NewMetricsFacadeService(snapshots, cacheSvc, metricsSvc, logr, service.FacadeConfig{
		DateColumn: cfg.Metrics.DateColumn,
		Timeout:    cfg.Metrics.PipelineTimeout,
		CacheTTL:   cfg.Cache.SummaryTTL,
	})
	authSvc := service.NewAuthService(service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	}, logr)

	validate := validator.New()
	routes := handler.Routes{
		APIPrefix: cfg.APIPrefix,
		Metrics: handler.NewMetricsHandler(facade, validate, handler.PeriodDefaults{
			CurrentYear:    cfg.Metrics.CurrentYear,
			ComparisonYear: cfg.Metrics.ComparisonYear,
			FilterMonth:    cfg.Metrics.FilterMonth,
		}),
		Snapshots: handler.NewSnapshotHandler(snapshots, cfg.APIPrefix),
		System:    handler.NewSystemHandler(metricsSvc, snapshots),
		Tokens:    authSvc,
	}

	if cfg.Exports.Enabled {
		exportSvc, exportQueue, err := newExports(cfg, facade, logr)
		if err != nil {
			logr.Fatal("exports init failed", zap.Error(err))
		}
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		go cleanupExports(ctx, exportSvc, logr)
		routes.Exports = handler.NewExportHandler(exportSvc, validate, cfg.Metrics.CurrentYear, cfg.APIPrefix)
	}

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		go limiter.Run(ctx, time.Minute)
		routes.Throttle = limiter.Middleware()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, cfg.APIPrefix))

	handler.RegisterRoutes(r, routes)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "data_source", cfg.Data.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSource(cfg *config.Config, logr *zap.Logger) (loader.Source, *sqlx.DB, error) {
	switch cfg.Data.Source {
	case config.DataSourceCSV:
		return loader.NewCSVSource(cfg.Data.Dir, cfg.Data.OrderStatus, logr), nil, nil
	case config.DataSourcePostgres, config.DataSourceSQLite:
		db, err := database.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewCommerceRepository(db)
		return loader.NewSQLSource(repo, cfg.Data.Source, cfg.Data.OrderStatus, logr), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

// newCache connects Redis when caching is enabled. A failed connection disables caching.
func newCache(cfg *config.Config, metricsSvc *service.MetricsService, logr *zap.Logger) (*service.CacheService, *redis.Client) {
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, metricsSvc, cfg.Cache.SummaryTTL, logr, false), nil
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		return service.NewCacheService(nil, metricsSvc, cfg.Cache.SummaryTTL, logr, false), nil
	}
	repo := repository.NewCacheRepository(client, "commerce-metrics", logr)
	return service.NewCacheService(repo, metricsSvc, cfg.Cache.SummaryTTL, logr, true), client
}

func newExports(cfg *config.Config, facade *service.MetricsFacadeService, logr *zap.Logger) (*service.ExportService, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	svc := service.NewExportService(facade, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)
	queue := jobs.NewQueue("metrics-export", svc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	svc.AttachQueue(queue)
	return svc, queue, nil
}

func cleanupExports(ctx context.Context, svc *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Cleanup(0); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}
