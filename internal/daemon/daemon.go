// Package daemon runs shaderbuild in watch mode: it rebuilds the manifest
// when shader sources change, optionally on a fixed schedule, and serves
// Prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	"git.home.luguber.info/inful/shaderbuild/internal/builder"
	"git.home.luguber.info/inful/shaderbuild/internal/config"
	"git.home.luguber.info/inful/shaderbuild/internal/history"
	"git.home.luguber.info/inful/shaderbuild/internal/logfields"
	"git.home.luguber.info/inful/shaderbuild/internal/metrics"
	"git.home.luguber.info/inful/shaderbuild/internal/retry"
	"git.home.luguber.info/inful/shaderbuild/internal/shader"
)

// Daemon owns the watch-mode lifecycle: source watcher, optional periodic
// rebuild schedule, metrics endpoint, and the shared build runner.
type Daemon struct {
	cfg    *config.Config
	dev    backend.Device
	runner *builder.Runner
	store  *history.Store

	watcher   *SourceWatcher
	scheduler gocron.Scheduler
	metricsSv *http.Server

	// buildMu serializes rebuilds; overlapping triggers wait rather than race.
	buildMu sync.Mutex
}

// New assembles a daemon from configuration. The device is injected so tests
// can run against the simulated backend.
func New(cfg *config.Config, dev backend.Device) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if dev == nil {
		return nil, fmt.Errorf("device is required")
	}

	d := &Daemon{cfg: cfg, dev: dev}
	d.runner = builder.New(dev, cfg)

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		d.store = store
		d.runner.SetStore(store)
	}

	if cfg.Daemon.MetricsAddr != "" {
		reg := prom.NewRegistry()
		d.runner.SetRecorder(metrics.NewPrometheusRecorder(reg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(reg))
		d.metricsSv = &http.Server{Addr: cfg.Daemon.MetricsAddr, Handler: mux}
	}

	return d, nil
}

// Run starts the daemon and blocks until the context is cancelled. An
// initial build runs before watching begins so the first status reflects the
// current sources.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting daemon",
		slog.Int("shaders", len(d.cfg.Shaders)),
		slog.Int("programs", len(d.cfg.Programs)))

	d.rebuild(ctx)

	if len(d.cfg.Daemon.WatchPaths) > 0 {
		w, err := NewSourceWatcher(d.cfg.Daemon.WatchPaths, d.cfg.DebounceInterval(), d.rebuild)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return err
		}
		d.watcher = w
	}

	if err := d.startScheduler(); err != nil {
		d.shutdown()
		return err
	}

	if d.metricsSv != nil {
		go func() {
			slog.Info("Serving metrics", slog.String("addr", d.metricsSv.Addr))
			if err := d.metricsSv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
	}

	<-ctx.Done()
	d.shutdown()
	return ctx.Err()
}

// startScheduler wires the optional periodic full rebuild.
func (d *Daemon) startScheduler() error {
	interval := d.cfg.RebuildInterval()
	if interval <= 0 {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { d.rebuild(context.Background()) }),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}

	slog.Info("Scheduling periodic rebuilds", slog.Duration("interval", interval))
	s.Start()
	d.scheduler = s
	return nil
}

// rebuild runs one full manifest build. Used as the initial build, the
// watcher callback, and the scheduled job. Infrastructure errors are retried
// with backoff; a watcher trigger can race an editor replacing a source file.
func (d *Daemon) rebuild(ctx context.Context) {
	d.buildMu.Lock()
	defer d.buildMu.Unlock()

	started := time.Now()
	policy := retry.DefaultPolicy()

	var (
		results  []builder.Result
		programs []builder.ProgramResult
		err      error
	)
	for attempt := 0; ; attempt++ {
		results, programs, err = d.runner.BuildAll(ctx)
		if err == nil || ctx.Err() != nil || attempt >= policy.MaxRetries {
			break
		}
		slog.Warn("Rebuild failed, retrying",
			slog.Int("attempt", attempt+1), logfields.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(policy.Delay(attempt + 1)):
		}
	}
	if err != nil {
		slog.Error("Rebuild aborted", logfields.Error(err))
		return
	}

	ready, failed := 0, 0
	for _, r := range results {
		if r.Status == shader.StatusReady {
			ready++
		} else {
			failed++
		}
	}
	slog.Info("Rebuild finished",
		slog.Int("ready", ready),
		slog.Int("failed", failed),
		slog.Int("programs", len(programs)),
		logfields.DurationMS(float64(time.Since(started).Microseconds())/1000.0))
}

// shutdown tears the daemon components down in reverse start order.
func (d *Daemon) shutdown() {
	if d.metricsSv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsSv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error stopping metrics server", logfields.Error(err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil {
			slog.Error("Error stopping scheduler", logfields.Error(err))
		}
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			slog.Error("Error stopping source watcher", logfields.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Error("Error closing history store", logfields.Error(err))
		}
	}
	slog.Info("Daemon stopped")
}
