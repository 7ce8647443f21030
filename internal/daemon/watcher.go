package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SourceWatcher monitors shader source directories and triggers debounced
// rebuilds when files change.
type SourceWatcher struct {
	watcher     *fsnotify.Watcher
	paths       []string
	debounce    time.Duration
	rebuildChan chan struct{}
	stopChan    chan struct{}
	onRebuild   func(ctx context.Context)
}

// NewSourceWatcher creates a watcher over the given directories. onRebuild
// is invoked after the debounce window closes.
func NewSourceWatcher(paths []string, debounce time.Duration, onRebuild func(ctx context.Context)) (*SourceWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no watch paths configured")
	}
	if onRebuild == nil {
		return nil, fmt.Errorf("rebuild callback is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		abs = append(abs, a)
	}

	return &SourceWatcher{
		watcher:     watcher,
		paths:       abs,
		debounce:    debounce,
		rebuildChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		onRebuild:   onRebuild,
	}, nil
}

// Start begins monitoring the source directories.
func (w *SourceWatcher) Start(ctx context.Context) error {
	for _, p := range w.paths {
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}
	slog.Info("Starting source watcher",
		slog.String("paths", strings.Join(w.paths, ",")),
		slog.Duration("debounce", w.debounce))

	go w.watchLoop(ctx)
	go w.rebuildLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *SourceWatcher) Stop() error {
	slog.Info("Stopping source watcher")
	close(w.stopChan)
	return w.watcher.Close()
}

// watchLoop forwards relevant file system events into the debounce channel.
func (w *SourceWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			slog.Debug("Shader source change detected",
				slog.String("file", event.Name), slog.String("op", event.Op.String()))
			w.trigger()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", slog.String("error", err.Error()))
		}
	}
}

// relevantEvent filters to writes, creates, and renames of source-looking
// files. Editors commonly write via rename.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return true
}

// rebuildLoop runs debounced rebuilds. A change arriving during the debounce
// window restarts the timer so bursts collapse into one rebuild.
func (w *SourceWatcher) rebuildLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.rebuildChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.onRebuild(ctx)
			})
		}
	}
}

// trigger requests a debounced rebuild; a pending request is not duplicated.
func (w *SourceWatcher) trigger() {
	select {
	case w.rebuildChan <- struct{}{}:
	default:
	}
}
