package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	"git.home.luguber.info/inful/shaderbuild/internal/backend/glsim"
	"git.home.luguber.info/inful/shaderbuild/internal/builder"
	"git.home.luguber.info/inful/shaderbuild/internal/config"
	"git.home.luguber.info/inful/shaderbuild/internal/daemon"
	"git.home.luguber.info/inful/shaderbuild/internal/history"
	"git.home.luguber.info/inful/shaderbuild/internal/shader"
	"git.home.luguber.info/inful/shaderbuild/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"shaderbuild.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
	JSON    bool   `help:"Emit logs as JSON"`

	Build struct {
		NoHistory bool `help:"Skip writing build records to the history store"`
	} `cmd:"" help:"Build all configured shaders and programs once"`

	Watch struct {
	} `cmd:"" help:"Watch shader sources and rebuild on change"`

	History struct {
		Name  string `short:"n" help:"Show records for a specific shader"`
		Limit int    `short:"l" help:"Maximum records to show" default:"20"`
	} `cmd:"" help:"Show recent build records"`

	Version struct {
	} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	setupLogging()

	switch ctx.Command() {
	case "build":
		if err := runBuild(); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(); err != nil {
			slog.Error("History query failed", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("shaderbuild %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if CLI.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newDevice builds the simulated device from the backend configuration. A
// real driver-backed device would slot in here.
func newDevice(cfg *config.Config) backend.Device {
	return glsim.New(glsim.Options{
		Caps: backend.Capabilities{
			AsyncCompilation:  cfg.Backend.AsyncCompilation,
			SeparablePrograms: cfg.Backend.SeparablePrograms,
		},
		CompileLatency: cfg.Backend.CompileLatency,
		LinkLatency:    cfg.Backend.LinkLatency,
	})
}

func runBuild() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := builder.New(newDevice(cfg), cfg)
	if cfg.History.Path != "" && !CLI.Build.NoHistory {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		r.SetStore(store)
	}

	results, programs, err := r.BuildAll(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Status != shader.StatusReady {
			failed++
			fmt.Fprintf(os.Stderr, "%s (%s): %s\n", res.Name, res.Stage, res.Err)
			if res.Log != "" {
				fmt.Fprintln(os.Stderr, res.Log)
			}
		}
	}
	for _, pr := range programs {
		if pr.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "program %s: %s\n", pr.Name, pr.Err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d build(s) failed", failed)
	}
	slog.Info("Build succeeded",
		slog.Int("shaders", len(results)), slog.Int("programs", len(programs)))
	return nil
}

func runWatch() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if len(cfg.Daemon.WatchPaths) == 0 && cfg.RebuildInterval() <= 0 {
		return fmt.Errorf("watch mode needs daemon.watch_paths or daemon.rebuild_interval")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, newDevice(cfg))
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func runHistory() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var records []history.Record
	if CLI.History.Name != "" {
		records, err = store.ByName(ctx, CLI.History.Name)
	} else {
		records, err = store.Recent(ctx, CLI.History.Limit)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("no build records")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %-12s %-8s %-6s polls=%-3d %s\n",
			rec.Created.Format("2006-01-02 15:04:05"),
			rec.Name, rec.Stage, rec.Status, rec.Polls, rec.Duration)
	}
	return nil
}
