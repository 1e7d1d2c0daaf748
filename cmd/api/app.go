package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/config"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/email"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/repository/postgres"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/audit"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/event"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/lifecycle"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/notification"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/order"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/stockmovement"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/messaging/redis"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

// app holds the services shared by the serve and export commands.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	db      *sqlx.DB
	broker  messaging.Broker
	backend *backend.Client

	audit         *audit.Service
	orders        *order.Service
	stockMovement *stockmovement.Service
	exports       *export.Service
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
	log.Logger = lg.ZL
	return lg
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: newLogger(cfg.Log), metrics: metrics.NewMetrics("inventory", "api")}

	a.backend, err = backend.NewClient(cfg.Backend, a.metrics, a.log)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	deps := lifecycle.Deps{Clock: query.SystemClock, Metrics: a.metrics, Logger: a.log}
	if cfg.Database.Enabled() {
		a.db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		base := postgres.NewBaseRepository(a.db)
		a.audit = audit.NewService(postgres.NewAuditRepository(base))
		deps.Auditor = a.audit
		deps.Emitter = event.NewEventService(postgres.NewOutboxRepository(base))
	} else {
		a.log.Warn("database not configured; audit logs and change events are disabled")
	}

	if cfg.Redis.Enabled {
		a.broker, err = redis.NewRedisBroker(ctx, cfg.Redis.Config, a.log, a.metrics)
		if err != nil {
			a.close()
			return nil, err
		}
	} else {
		a.broker = messaging.NewMemoryBroker()
	}

	var mailer email.Service
	if cfg.Email.Enabled() {
		mailer = email.NewSMTPService(cfg.Email)
	}
	notifier := notification.NewService(mailer, a.broker, a.log)

	a.orders = order.NewService(
		backend.NewResource[model.Order](a.backend, "/orders", "order"), deps, notifier, cfg.Order)
	a.stockMovement = stockmovement.NewService(
		backend.NewResource[model.StockMovement](a.backend, "/stock-movements", "stock movement"), deps, notifier, cfg.StockMovement)

	var uploader export.Uploader
	if cfg.S3.Bucket != "" {
		store, err := export.NewS3Store(ctx, cfg.S3)
		if err != nil {
			a.close()
			return nil, err
		}
		uploader = store
	}
	var auditor export.Auditor
	if a.audit != nil {
		auditor = a.audit
	}
	a.exports = export.NewService(uploader, a.backend, auditor, query.SystemClock, a.metrics, a.log)

	return a, nil
}

func (a *app) close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.log.Error(err, "failed to close broker")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error(err, "failed to close database")
		}
	}
}
