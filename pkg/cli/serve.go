package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/config"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/scope"
	"github.com/researchportal/pubportal/pkg/storage"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Run the portal API together with a separate listener for health
checks and Prometheus metrics. SIGINT or SIGTERM drains both.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger(cfg))
		},
	}
}

// runServe blocks until ctx is cancelled or a listener fails
func runServe(ctx context.Context, cfg *config.Config, log *observability.Logger) error {
	shutdown := observability.NewShutdownManager(log, cfg.Server.ShutdownTimeout)
	started := false
	defer func() {
		if !started {
			shutdown.Shutdown(context.Background())
		}
	}()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if providers != nil {
		shutdown.Register("otel", providers.Shutdown)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	if providers != nil {
		om, err := observability.NewOTelMetrics()
		if err != nil {
			return err
		}
		metrics.WithOTel(om)
	}

	hierarchy, err := scope.Load(cfg.Scope.HierarchyPath)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"version":  hierarchy.Version(),
		"colleges": len(hierarchy.SelectableColleges()),
	}).Info("Loaded college hierarchy")

	auditLogger, err := audit.NewLogrusLogger(cfg.Observability.AuditOutput)
	if err != nil {
		return err
	}
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })

	db, err := openDatabase(ctx, cfg, log, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	rdb, err := storage.NewRedisClient(ctx, cfg.StorageConfig())
	if err != nil {
		return err
	}
	shutdown.Register("redis", func(context.Context) error { return rdb.Close() })

	a := newApp(cfg, hierarchy, db, rdb, log, auditLogger, metrics)

	a.refreshGauges(ctx)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Observability.GaugeSchedule, func() {
		defer observability.RecoverPanic(log, "gauge refresh")
		a.refreshGauges(ctx)
	}); err != nil {
		return fmt.Errorf("invalid gauge schedule %q: %w", cfg.Observability.GaugeSchedule, err)
	}
	scheduler.Start()
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, rdb, Version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.HealthAddr(),
		Handler:           healthMux,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	shutdown.Register("health server", healthServer.Shutdown)

	apiServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.server().Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	shutdown.Register("api server", apiServer.Shutdown)

	started = true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("API server listening on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		log.Infof("Health and metrics listening on %s", healthServer.Addr)
		return listen(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})
	return g.Wait()
}

// listen serves until the server is shut down
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
