package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"checkdesk/internal/platform/config"
	"checkdesk/internal/platform/health"
	"checkdesk/internal/platform/logger"
	rosterhandler "checkdesk/internal/roster/handler"
	"checkdesk/internal/roster/ingest"
	rostermetrics "checkdesk/internal/roster/metrics"
	"checkdesk/internal/roster/models"
	"checkdesk/internal/roster/store"
	syncmetrics "checkdesk/internal/sync/metrics"
	syncservice "checkdesk/internal/sync/service"
	"checkdesk/internal/sync/transport/broadcast"
	"checkdesk/internal/sync/transport/poll"
	"checkdesk/internal/sync/transport/redisdoc"
	"checkdesk/internal/sync/transport/sqlitecache"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Sync and roster logic live in the internal packages.
func main() {
	log := logger.New()
	cfg := config.FromEnv(log)
	sessionID := uuid.NewString()

	log.Info("initializing checkdesk",
		"addr", cfg.Addr,
		"session_id", sessionID,
		"remote_configured", cfg.RedisURL != "",
	)

	cache, err := sqlitecache.Open(cfg.CachePath, cfg.Namespace)
	if err != nil {
		log.Error("opening local cache failed", "path", cfg.CachePath, "error", err)
		os.Exit(1)
	}
	defer cache.Close() //nolint:errcheck // best-effort on shutdown

	// The remote transport is optional: an unreachable Redis degrades the
	// instance to cache + broadcast instead of refusing to start.
	var remote *redisdoc.Doc
	if cfg.RedisURL != "" {
		remote, err = redisdoc.New(cfg.RedisURL, cfg.Namespace, log)
		if err != nil {
			log.Warn("remote transport unavailable, running local-only", "error", err)
			remote = nil
		} else {
			defer remote.Close() //nolint:errcheck // best-effort on shutdown
		}
	}

	bus := broadcast.NewBus(broadcast.WithTTL(cfg.HeartbeatTTL))
	member := bus.Join(sessionID, log)
	defer member.Close()

	st := store.NewInMemory()
	rosterM := rostermetrics.New()
	syncM := syncmetrics.New()

	opts := []syncservice.Option{
		syncservice.WithPublisher(member),
		syncservice.WithListeners(member),
		syncservice.WithRosterSource(func() ([]models.Person, []models.Person, error) {
			return ingest.FromFiles(cfg.ParticipantsCSV, cfg.StaffCSV)
		}),
		syncservice.WithOnline(bus.Online),
		syncservice.WithLogger(log),
		syncservice.WithMetrics(syncM),
	}
	if remote != nil {
		opts = append(opts,
			syncservice.WithRemote(remote),
			// Realtime updates plus a polling backstop for missed publishes;
			// the reconciler discards anything stale, so double delivery is
			// harmless.
			syncservice.WithListeners(
				remote,
				poll.New(remote, log, poll.WithInterval(cfg.PollInterval)),
			),
		)
	}

	svc, err := syncservice.New(st, cache, sessionID, opts...)
	if err != nil {
		log.Error("building sync service failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.Bootstrap(ctx)
	if err := svc.Start(ctx); err != nil {
		log.Error("starting sync listeners failed", "error", err)
		os.Exit(1)
	}
	defer svc.Stop()

	healthHandler := health.New()
	healthHandler.RegisterCheck("cache", func() error { return cache.Health(context.Background()) })
	if remote != nil {
		healthHandler.RegisterCheck("redis", func() error { return remote.Health(context.Background()) })
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	rosterhandler.New(svc, st, rosterM, log).Register(router)
	healthHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
