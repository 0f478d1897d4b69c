package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/arenalab/skillrate/internal/adapters/http/api"
	"github.com/arenalab/skillrate/internal/adapters/http/site"
	"github.com/arenalab/skillrate/internal/adapters/http/swagger"
	"github.com/arenalab/skillrate/internal/adapters/repository"
	app "github.com/arenalab/skillrate/internal/app"
	"github.com/arenalab/skillrate/internal/config"
	"github.com/arenalab/skillrate/internal/domain/glicko"
	"github.com/arenalab/skillrate/pkg/logger"
	"github.com/arenalab/skillrate/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, recorder, err := buildStorage(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to build storage", logger.Error(err))
		return
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithApplyRetries(cfg.ApplyRetries),
		app.WithEngineOptions(
			glicko.WithTau(cfg.Tau),
			glicko.WithTolerance(cfg.SolverTolerance),
			glicko.WithIterationBudget(cfg.SolverBudget),
		),
	}
	if recorder != nil {
		opts = append(opts, app.WithRecorder(recorder))
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		opts = append(opts, app.WithBoard(repository.NewRedisBoard(rdb)))
	}

	// Create and start the service with configuration options
	svc := app.New(store, opts...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit)
	apiServer.Register(ctx, mux)

	// Documentation surfaces: API reference and the static docs site.
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildStorage constructs the rating store and match recorder selected by
// configuration. The recorder may be nil when history is disabled.
func buildStorage(ctx context.Context, cfg *config.Config) (repository.RatingStore, repository.MatchRecorder, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		st, err := repository.NewSQLStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case config.StorePostgres:
		st, err := repository.NewPGStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	default:
		st := repository.NewMemoryStore(repository.WithShardCount(cfg.ShardCount))
		if cfg.HistoryPath == "" {
			return st, nil, nil
		}
		rec, err := repository.NewBoltRecorder(cfg.HistoryPath)
		if err != nil {
			return nil, nil, err
		}
		return st, rec, nil
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	// GetStats already refreshes the derived gauges; the assertions below
	// keep the queue gauge fresh even if stats keys change shape.
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}

	if totalPlayers, ok := stats["totalPlayers"].(int); ok {
		metrics.UpdateTotalPlayers(totalPlayers)
	}

	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
