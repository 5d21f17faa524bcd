// Command settled serves the settle contracts over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/settle/api"
	audithook "github.com/xraph/settle/audit_hook"
	"github.com/xraph/settle/clock"
	"github.com/xraph/settle/genesis"
	"github.com/xraph/settle/observability"
	"github.com/xraph/settle/publish/kafka"
	"github.com/xraph/settle/runtime"
	"github.com/xraph/settle/store/backend"
)

func main() {
	if err := run(); err != nil {
		slog.Error("settled exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := backend.Open(ctx, cfg.backend())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPrometheusFactory(reg)

	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithClock(clock.NewInterval(cfg.Epoch, cfg.CloseInterval)),
		runtime.WithPluginTimeout(cfg.PluginTimeout),
		runtime.WithPlugin(observability.NewMetricsExtension(metrics)),
	}
	if cfg.Audit {
		opts = append(opts, runtime.WithPlugin(audithook.New(logRecorder(logger), audithook.WithLogger(logger))))
	}
	if len(cfg.KafkaBrokers) > 0 {
		opts = append(opts, runtime.WithPlugin(kafka.New(cfg.KafkaBrokers,
			kafka.WithPrefix(cfg.KafkaPrefix),
			kafka.WithLogger(logger),
		)))
	}

	rt := runtime.New(s, opts...)
	if err := rt.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	defer func() {
		if err := rt.Stop(); err != nil {
			logger.Error("runtime stop failed", "error", err)
		}
	}()

	serverOpts := []api.Option{api.WithLogger(logger)}
	if cfg.Genesis != "" {
		m, err := genesis.Load(cfg.Genesis)
		if err != nil {
			return err
		}
		dep, err := genesis.Apply(ctx, rt, m)
		if err != nil {
			return err
		}
		serverOpts = append(serverOpts, api.WithDeployment(dep))
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: newMux(api.New(rt, serverOpts...), metrics.Handler()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("settled listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newMux mounts the API at the root and the scrape handler at /metrics.
func newMux(apiHandler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", metricsHandler)
	r.Mount("/", apiHandler)
	return r
}

// logRecorder writes audit events to the process log.
func logRecorder(logger *slog.Logger) audithook.RecorderFunc {
	return func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("action", ev.Action),
			slog.String("resource", ev.Resource),
			slog.String("category", ev.Category),
			slog.String("resource_id", ev.ResourceID),
			slog.String("outcome", ev.Outcome),
			slog.String("severity", ev.Severity),
			slog.Any("metadata", ev.Metadata),
		)
		return nil
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
