// Package server provides the application composition root: it builds every
// dependency from config and runs the HTTP server and worker pool together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/signal-news/internal/api"
	"github.com/JakeFAU/signal-news/internal/catalog"
	"github.com/JakeFAU/signal-news/internal/clock/system"
	"github.com/JakeFAU/signal-news/internal/config"
	"github.com/JakeFAU/signal-news/internal/dispatcher"
	"github.com/JakeFAU/signal-news/internal/hash/sha256"
	"github.com/JakeFAU/signal-news/internal/id/uuid"
	"github.com/JakeFAU/signal-news/internal/logging"
	"github.com/JakeFAU/signal-news/internal/metrics"
	"github.com/JakeFAU/signal-news/internal/policy/ratelimit"
	"github.com/JakeFAU/signal-news/internal/progress"
	progresssinks "github.com/JakeFAU/signal-news/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/signal-news/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/signal-news/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/signal-news/internal/queue/memory"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/simulator"
	gcsstorage "github.com/JakeFAU/signal-news/internal/storage/gcs"
	localstorage "github.com/JakeFAU/signal-news/internal/storage/local"
	memoryStorage "github.com/JakeFAU/signal-news/internal/storage/memory"
	pgstore "github.com/JakeFAU/signal-news/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/signal-news/internal/storage/sqlite"
	"github.com/JakeFAU/signal-news/internal/store"
	"github.com/JakeFAU/signal-news/internal/telemetry"
	"github.com/JakeFAU/signal-news/internal/worker"
)

const (
	shutdownTimeout     = 10 * time.Second
	maintenanceInterval = 30 * time.Second
	limiterIdleTTL      = 10 * time.Minute
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	registerer     prometheus.Registerer
	apiServer      *api.Server
	dispatch       *dispatcher.Dispatcher
	progressHub    *progress.Hub
	feed           *progresssinks.FeedSink
	queue          *queueMemory.Queue
	limiter        *ratelimit.Limiter
	catalog        *catalog.Catalog
	pubsubClient   *pubsub.Client
	pubsubTopic    *pubsub.Topic
	storage        *storage.Client
	pgPool         *pgxpool.Pool
	sqliteStore    *sqlitestore.ReportStore
	tracerProvider *sdktrace.TracerProvider
	listener       net.Listener
}

// Option customizes Build.
type Option func(*App)

// WithLogger uses logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithRegisterer registers progress metrics against reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// WithListener serves on ln instead of listening on server.port.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
		if err != nil {
			return errors.Join(fmt.Errorf("listen: %w", err), a.Close(context.Background()))
		}
	}
	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Generation.Concurrency))
		a.dispatch.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		a.maintain(gctx)
		return nil
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Close(closeCtx))
}

// maintain refreshes the queue gauge and forgets idle rate limit buckets.
func (a *App) maintain(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if depth := a.dispatch.Depth(); depth >= 0 {
				metrics.SetQueueDepth(depth)
			}
			if a.limiter != nil {
				if n := a.limiter.Prune(limiterIdleTTL); n > 0 {
					a.logger.Debug("pruned idle rate limit buckets", zap.Int("count", n))
				}
			}
		}
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure(ctx)
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		a.progressHub = nil
	}
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
		a.pubsubTopic = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.sqliteStore != nil {
		if err := a.sqliteStore.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
		a.sqliteStore = nil
	}
	if a.pgPool != nil {
		a.pgPool.Close()
		a.pgPool = nil
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
		a.tracerProvider = nil
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{cfg: cfg, registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		logger, err := logging.Build(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		app.logger = logger
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("reports_backend", cfg.Reports.Backend),
	)
	clock := system.New()
	app.catalog = catalog.New(catalog.Config{
		Latency:       cfg.CatalogLatency(),
		ReportLatency: cfg.ReportLatency(),
	}, clock)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: cfg.Tracing.ServiceVersion,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		app.tracerProvider = tp
	}

	built, err := app.build(ctx, clock)
	if err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	return built, nil
}

func (a *App) build(ctx context.Context, clock report.Clock) (*App, error) {
	blobStore, err := setupStorage(ctx, a)
	if err != nil {
		return nil, err
	}
	reports, runs, err := setupDatabase(ctx, a)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return nil, err
	}
	emitter, err := setupProgress(ctx, a, runs)
	if err != nil {
		return nil, err
	}

	jobStore := memoryStorage.NewJobStore()
	a.queue = queueMemory.NewQueue(a.cfg.Generation.QueueDepth)
	a.dispatch, err = setupDispatcher(a, clock, jobStore, reports, blobStore, publisher, emitter)
	if err != nil {
		return nil, err
	}

	if a.cfg.RateLimit.RPS > 0 {
		a.limiter = ratelimit.New(ratelimit.Config{
			RPS:       a.cfg.RateLimit.RPS,
			Burst:     a.cfg.RateLimit.Burst,
			OnLimited: metrics.ObserveRateLimited,
		})
		a.logger.Info("submission rate limiter enabled",
			zap.Float64("rps", a.cfg.RateLimit.RPS),
			zap.Int("burst", a.cfg.RateLimit.Burst),
		)
	}

	a.apiServer = api.NewServer(api.Deps{
		Catalog:    a.catalog,
		Jobs:       jobStore,
		Reports:    reports,
		Blobs:      blobStore,
		Hasher:     sha256.New(),
		Dispatcher: a.dispatch,
		JobIDs:     uuid.NewUUIDGenerator(),
		Clock:      clock,
		Limiter:    a.limiter,
		Feed:       a.feed,
		Runs:       runs,
		Ready:      a.ready,
	}, *a.cfg, a.logger)
	return a, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.pgPool != nil {
		if err := a.pgPool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
	}
	return nil
}

func setupStorage(ctx context.Context, app *App) (report.BlobStore, error) {
	var blobStore report.BlobStore
	var err error
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend")
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err = gcsstorage.New(app.storage, gcsstorage.Config{
			Bucket: app.cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS storage backend", zap.String("bucket", app.cfg.Storage.Bucket))
	case config.BackendLocal:
		app.logger.Info("using local storage backend")
		blobStore, err = localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local storage backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
	default:
		app.logger.Info("using in-memory storage backend")
		blobStore = memoryStorage.NewBlobStore()
	}
	return blobStore, nil
}

// setupDatabase picks the report repository and the run repository. Runs live
// in Postgres whenever a DSN is configured, otherwise in memory.
func setupDatabase(ctx context.Context, app *App) (report.Repository, store.RunRepository, error) {
	var runs store.RunRepository = memoryStorage.NewRunStore()
	if app.cfg.DB.DSN != "" {
		pool, err := pgstore.Open(ctx, pgstore.Config{
			DSN:             app.cfg.DB.DSN,
			MaxConns:        app.cfg.DB.MaxConns,
			MinConns:        app.cfg.DB.MinConns,
			MaxConnLifetime: app.cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres init failed: %w", err)
		}
		app.pgPool = pool
		if err := pgstore.Migrate(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("postgres migrate failed: %w", err)
		}
		runStore, err := pgstore.NewRunStore(pool)
		if err != nil {
			return nil, nil, fmt.Errorf("run store init failed: %w", err)
		}
		runs = runStore
		app.logger.Info("run history stored in postgres")
	} else {
		app.logger.Warn("No DSN specified for database, keeping run history in memory")
	}

	var reports report.Repository
	switch app.cfg.Reports.Backend {
	case config.BackendPostgres:
		if app.pgPool == nil {
			return nil, nil, fmt.Errorf("reports backend postgres requires db.dsn")
		}
		repo, err := pgstore.NewReportStore(app.pgPool)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres report store init failed: %w", err)
		}
		reports = repo
		app.logger.Info("using postgres report store")
	case config.BackendSQLite:
		repo, err := sqlitestore.Open(app.cfg.Reports.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite report store init failed: %w", err)
		}
		app.sqliteStore = repo
		reports = repo
		app.logger.Info("using sqlite report store", zap.String("path", app.cfg.Reports.SQLitePath))
	default:
		app.logger.Info("using in-memory report store")
		reports = memoryStorage.NewReportStore()
	}
	if err := seedReports(ctx, reports, app.catalog.Seed(), app.logger); err != nil {
		return nil, nil, err
	}
	return reports, runs, nil
}

// seedReports stores the sample history when the repository is empty.
func seedReports(ctx context.Context, repo report.Repository, seed []report.Report, logger *zap.Logger) error {
	existing, err := repo.ListReports(ctx, 1)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, r := range seed {
		if err := repo.SaveReport(ctx, r); err != nil {
			return fmt.Errorf("seed report %s: %w", r.ID, err)
		}
	}
	logger.Info("seeded report history", zap.Int("count", len(seed)))
	return nil
}

func setupPublisher(ctx context.Context, app *App) (report.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubTopic = app.pubsubClient.Topic(app.cfg.PubSub.TopicName)
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(app.pubsubTopic), nil
}

func setupProgress(ctx context.Context, app *App, runs store.RunRepository) (progress.Emitter, error) {
	if !app.cfg.Progress.Enabled {
		app.logger.Info("progress tracking disabled")
		return nil, nil
	}
	app.feed = progresssinks.NewFeedSink(0, app.logger.Named("progress_feed"))
	sinkList := []progress.Sink{
		app.feed,
		progresssinks.NewStoreSink(runs, app.logger.Named("progress_store")),
	}
	promSink, err := progresssinks.NewPrometheusSink(app.registerer)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if app.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(app.logger.Named("progress_log")))
		app.logger.Debug("Added progress log sink")
	}
	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(app.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(app.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("progress_hub"),
	}
	app.progressHub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.progressHub, nil
}

func setupDispatcher(
	app *App,
	clock report.Clock,
	jobStore report.JobStore,
	reports report.Repository,
	blobStore report.BlobStore,
	publisher report.Publisher,
	emitter progress.Emitter,
) (*dispatcher.Dispatcher, error) {
	sim, err := simulator.New(simulator.Config{
		Steps:    simulator.DefaultSteps(),
		Interval: app.cfg.StepInterval(),
		Settle:   app.cfg.Settle(),
		Quiet:    app.cfg.Quiet(),
	}, uuid.NewReportIDGenerator(), app.logger.Named("simulator"))
	if err != nil {
		return nil, fmt.Errorf("simulator init failed: %w", err)
	}

	workerCfg := worker.Config{
		ContentType: app.cfg.Storage.ContentType,
		BlobPrefix:  app.cfg.Storage.Prefix,
		Topic:       app.cfg.PubSub.TopicName,
		JobTimeout:  app.cfg.JobBudget(),
	}
	app.logger.Info("worker config",
		zap.String("content_type", workerCfg.ContentType),
		zap.String("blob_prefix", workerCfg.BlobPrefix),
		zap.String("topic", workerCfg.Topic),
		zap.Duration("job_timeout", workerCfg.JobTimeout),
		zap.Duration("step_interval", app.cfg.StepInterval()),
	)

	registry := worker.NewRegistry()
	deps := worker.Deps{
		Queue:     app.queue,
		Jobs:      jobStore,
		Reports:   reports,
		Blobs:     blobStore,
		Publisher: publisher,
		Hasher:    sha256.New(),
		Clock:     clock,
		Simulator: sim,
		Drafter:   app.catalog,
		Emitter:   emitter,
		Registry:  registry,
	}
	var workers []*worker.Worker
	for i := 0; i < app.cfg.Generation.Concurrency; i++ {
		workers = append(workers, worker.New(deps, workerCfg, app.logger.Named("worker").With(zap.Int("index", i))))
	}
	return dispatcher.New(app.queue, workers, registry), nil
}
