package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/audit"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/health"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/order"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/stockmovement"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/router"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/worker"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/auth"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	refresher := worker.NewRefresher(cfg.Refresher.Interval, a.log, map[string]worker.Source{
		model.AuditEntityOrder:         a.orders,
		model.AuditEntityStockMovement: a.stockMovement,
	})
	// The service starts even when the backend is down; the next poll
	// fills the stores.
	if err := refresher.RefreshAll(ctx); err != nil {
		a.log.Warn("initial store load failed", "error", err.Error())
	}

	gin.SetMode(gin.ReleaseMode)
	var healthH *health.Handler
	if a.db != nil {
		healthH = health.NewHandler(a.db, a.backend)
	} else {
		healthH = health.NewHandler(nil, a.backend)
	}
	protected := []router.Handler{
		order.NewHandler(a.orders, a.exports),
		stockmovement.NewHandler(a.stockMovement, a.exports),
	}
	if a.audit != nil {
		protected = append(protected, audit.NewHandler(a.audit))
	}
	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewHMACService(cfg.JWT.Secret, cfg.JWT.Issuer)),
		healthH,
		a.metrics,
		router.RouterConfig{
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:      cfg.RateLimit.Burst,
			RateIdleTTL:    cfg.RateLimit.IdleTTL,
			CORSConfig: middleware.CORSConfig{
				AllowOrigins:     cfg.CORS.AllowedOrigins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           cfg.CORS.MaxAge,
			},
			Security:    middleware.DefaultSecurityConfig(),
			MetricsPath: cfg.Server.MetricsPath,
		},
		protected...,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	background := func(name string, run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(bgCtx)
			a.log.Debug("background task stopped", "task", name)
		}()
	}

	background("refresher", refresher.Start)
	if cfg.Redis.Enabled {
		sub := worker.NewSubscriber(a.broker, a.log, map[string]worker.Applier{
			model.AuditEntityOrder:         a.orders,
			model.AuditEntityStockMovement: a.stockMovement,
		})
		background("subscriber", func(ctx context.Context) {
			if err := sub.Start(ctx); err != nil {
				a.log.Error(err, "change event subscriber stopped")
			}
		})
	}
	if a.audit != nil {
		background("audit cleanup", worker.NewAuditCleanupWorker(a.audit, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval, a.log).Start)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	err = srv.Shutdown(shutdownCtx)
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server exited properly")
	return nil
}
