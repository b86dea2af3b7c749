// Package watch reloads a configuration directory when its documents
// change. A loaded snapshot stays immutable; every change produces a
// fresh snapshot, so consumers swap atomically and never observe a
// half-reloaded configuration.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skyarchive/depot/config"
)

// WatcherConfig configures the document watcher.
type WatcherConfig struct {
	// Dir is the configuration directory to watch.
	Dir string

	// DebounceDelay is how long to wait for more changes before
	// reloading. Zero means 250ms.
	DebounceDelay time.Duration

	// Logger for reload events.
	Logger *slog.Logger

	// Metrics records reload outcomes. Nil disables metrics.
	Metrics *Metrics
}

// Event is one reload outcome: a fresh valid snapshot, or the error that
// kept the previous snapshot in place.
type Event struct {
	Config *config.Config
	Err    error
}

// Watcher watches the document files and emits reload events.
type Watcher struct {
	cfg     WatcherConfig
	loader  *config.Loader
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   bool

	// events is owned by the processEvents goroutine, which closes it
	// on exit; done signals that exit so Stop can wait for it.
	events chan Event
	done   chan struct{}
	stop   context.CancelFunc
}

// NewWatcher creates a watcher over a configuration directory.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 250 * time.Millisecond
	}

	return &Watcher{
		cfg:     cfg,
		loader:  config.NewLoader(logger),
		watcher: fsw,
		logger:  logger,
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the channel of reload events. It is closed once the
// watcher has stopped.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. The initial load is emitted as the first event.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return err
	}
	// The datastore subdirectory may not exist; watch it when it does.
	dsDir := filepath.Join(w.cfg.Dir, config.DatastoresDir)
	if err := w.watcher.Add(dsDir); err != nil {
		w.logger.Debug("Not watching datastore directory", "path", dsDir, "error", err)
	}

	ctx, w.stop = context.WithCancel(ctx)
	go w.processEvents(ctx)

	w.logger.Info("Configuration watcher started",
		"dir", w.cfg.Dir,
		"debounce", w.cfg.DebounceDelay)

	return nil
}

// Stop cancels the watcher and waits for the event goroutine to exit
// before releasing the filesystem watches. The events channel is closed
// by that goroutine, never here, so a reload in flight can finish its
// send first.
func (w *Watcher) Stop() error {
	if w.stop != nil {
		w.stop()
		<-w.done
	}
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	defer close(w.events)

	w.reload(ctx)

	ticker := time.NewTicker(w.cfg.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	ext := filepath.Ext(event.Name)
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if pending {
		w.reload(ctx)
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := w.loader.Load(w.cfg.Dir)
	if err != nil {
		w.logger.Warn("Configuration reload failed, keeping previous snapshot",
			"dir", w.cfg.Dir,
			"error", err)
		w.cfg.Metrics.observe(false)
		w.emit(ctx, Event{Err: err})
		return
	}

	w.logger.Info("Configuration reloaded",
		"dir", w.cfg.Dir,
		"storageClasses", len(cfg.Registry.Names()),
		"datastores", len(cfg.Datastores))
	w.cfg.Metrics.observe(true)
	w.emit(ctx, Event{Config: cfg})
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}
