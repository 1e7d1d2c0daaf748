package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/config"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/health"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/repository/postgres"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging/redis"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/worker"
)

const envPrefix = "INVENTORY_WORKER"

// workerConfig is read from INVENTORY_WORKER_* variables, e.g.
// INVENTORY_WORKER_DATABASE_HOST or INVENTORY_WORKER_OUTBOX_BATCH_SIZE.
type workerConfig struct {
	Database      config.DatabaseConfig        `envconfig:"DATABASE"`
	Redis         redis.Config                 `envconfig:"REDIS"`
	Outbox        worker.OutboxProcessorConfig `envconfig:"OUTBOX"`
	PurgeInterval time.Duration                `envconfig:"PURGE_INTERVAL" default:"1h"`
	HealthAddr    string                       `envconfig:"HEALTH_ADDR" default:":8081"`
	LogLevel      string                       `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON       bool                         `envconfig:"LOG_JSON" default:"true"`
}

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run() error {
	var cfg workerConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Database.Enabled() {
		return fmt.Errorf("%s_DATABASE_HOST is required", envPrefix)
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.LogJSON,
	})
	log.Logger = lg.ZL

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.NewMetrics("inventory", "outbox")
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis, lg, m)
	if err != nil {
		return fmt.Errorf("failed to create Redis broker: %w", err)
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(
		postgres.NewOutboxRepository(postgres.NewBaseRepository(db)),
		broker,
		cfg.Outbox,
		lg.WithFields(map[string]interface{}{"component": "outbox_processor"}),
		m,
	)
	if err != nil {
		return err
	}

	srv := healthServer(cfg.HealthAddr, db)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(err, "health check server failed")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		purge(ctx, processor, cfg.PurgeInterval, lg)
	}()

	lg.Info("worker started", "channel", cfg.Outbox.Channel, "batch_size", cfg.Outbox.BatchSize)
	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

// healthServer exposes liveness, readiness and metrics for the worker.
func healthServer(addr string, db health.Pinger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(db, nil).RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 5 * time.Second}
}

func purge(ctx context.Context, p *worker.OutboxProcessor, interval time.Duration, lg *logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				lg.Error(err, "outbox purge failed")
				continue
			}
			if n > 0 {
				lg.Info("purged processed outbox events", "count", n)
			}
		}
	}
}
