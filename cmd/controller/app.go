package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/config"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/journal"
	"github.com/danielpatrickdp/raist/go-controller/internal/metrics"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// #region options
// appOptions are the persistent flags shared by every subcommand.
type appOptions struct {
	ConfigPath   string
	LogLevel     string
	DBPath       string
	MetricsAddr  string
	ProducerAddr string
}

// #endregion options

// #region app
// app owns everything a subcommand needs around one engine.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *engine.Engine
	journal *journal.Journal
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	closers []func() error
}

// newApp loads config, opens the journal, builds an engine over a store
// holding seeds and starts the metrics and status endpoint.
func newApp(opts appOptions, seeds []commitment.Record, tweak func(*config.Config)) (*app, error) {
	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.Journal.Path = opts.DBPath
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	if opts.ProducerAddr != "" {
		cfg.Producer.Addr = opts.ProducerAddr
	}
	if tweak != nil {
		tweak(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })

	store := commitment.NewStore(cfg.Dimension())
	for _, rec := range seeds {
		if err := store.Add(rec.ID, rec); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed %s: %w", rec.ID, err)
		}
	}

	p, err := a.producer()
	if err != nil {
		a.Close()
		return nil, err
	}

	var observers engine.MultiObserver
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		a.closers = append(a.closers, j.Close)
		observers = append(observers, j)
	}

	a.reg = prometheus.NewRegistry()
	a.metrics = metrics.New(a.reg)
	observers = append(observers, a.metrics)

	e, err := engine.New(store, p, cfg.ToEngine(),
		engine.WithLogger(logger),
		engine.WithObserver(observers),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = e

	if cfg.Metrics.Addr != "" {
		a.serve(cfg.Metrics.Addr, a.handler(a.reg))
	}

	logger.Info("engine ready",
		zap.Int("dimension", cfg.Dimension()),
		zap.Int("seeds", store.Len()),
		zap.String("journal", cfg.Journal.Path),
		zap.String("producer", producerName(cfg)),
	)
	return a, nil
}

// producer dials the configured gRPC producer, or falls back to Canned.
func (a *app) producer() (producer.Producer, error) {
	if a.cfg.Producer.Addr == "" {
		return producer.Canned{}, nil
	}
	client, err := producer.NewClient(a.cfg.Producer.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect to producer at %s: %w", a.cfg.Producer.Addr, err)
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// handler routes /metrics and /status.
func (a *app) handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/status", statusHandler(a.engine, a.logger))
	return mux
}

func (a *app) serve(addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server failed", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	a.logger.Info("serving metrics and status", zap.String("addr", addr))
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// #endregion app

// #region helpers
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func producerName(cfg *config.Config) string {
	if cfg.Producer.Addr == "" {
		return "canned"
	}
	return "grpc://" + cfg.Producer.Addr
}

// #endregion helpers
