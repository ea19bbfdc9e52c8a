package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docverify/internal/platform/config"
	"docverify/internal/platform/httpserver"
	"docverify/internal/platform/logger"
	httpmetrics "docverify/internal/platform/metrics"
	"docverify/internal/verification/handler"
	vmetrics "docverify/internal/verification/metrics"
	"docverify/internal/verification/session"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	metrics := vmetrics.New()

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	policies, err := buildPolicyStore(ctx, cfg, infra, metrics, log)
	if err != nil {
		return err
	}
	auditing, err := buildAudit(ctx, cfg, infra, log)
	if err != nil {
		return err
	}
	defer auditing.Close()

	svc := session.New(policies.reader,
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithAuditPublisher(auditing.compliance),
		session.WithOpsAudit(auditing.ops),
		session.WithCollaboratorTimeout(cfg.CollaboratorTimeout),
	)

	router := chi.NewRouter()
	router.Use(metadata.RequestMetadata)
	router.Use(requesttime.Middleware)
	router.Use(httpmetrics.New(prometheus.DefaultRegisterer).Middleware)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	handler.New(svc, policies.reader, log).Register(router)

	go policies.watchReload(ctx, auditing.ops, log)

	srv := httpserver.New(cfg.Addr, router, cfg.CollaboratorTimeout)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docverify", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("docverify stopped")
	return nil
}
