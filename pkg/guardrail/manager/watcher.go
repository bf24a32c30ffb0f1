package manager

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"kairo-hq/guardrails/pkg/guardrail/source"
)

// DefaultDebounce is used when FileWatcherConfig.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcherConfig configures a FileWatcher.
type FileWatcherConfig struct {
	// Path is a rule file or a directory of rule files.
	Path string

	// Debounce is the quiet period after the last event before a reload.
	Debounce time.Duration
}

// FileWatcher triggers reloads when rule files change. Bursts of events,
// such as an editor writing a temp file and renaming it, collapse into one
// reload through a Debouncer.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	root     string
	file     string // set when watching a single file
	debounce *Debouncer

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewFileWatcher creates a watcher for cfg.Path. Paths are registered by Add.
func NewFileWatcher(cfg FileWatcherConfig, logger *slog.Logger) (*FileWatcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		watcher:  w,
		logger:   logger,
		root:     cfg.Path,
		debounce: NewDebouncer(cfg.Debounce),
	}, nil
}

// Add registers the watched path. A directory is watched recursively,
// skipping hidden subdirectories. A single file is watched through its
// parent directory so that atomic replaces by editors are still seen.
func (fw *FileWatcher) Add() error {
	info, err := os.Stat(fw.root)
	if err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}
	if !info.IsDir() {
		fw.file = filepath.Clean(fw.root)
		return fw.watcher.Add(filepath.Dir(fw.file))
	}
	return fw.addTree(fw.root)
}

func (fw *FileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		fw.logger.Debug("Watching directory", "path", path)
		return nil
	})
}

// Watch processes events until ctx is cancelled or the watcher is closed.
// onReload runs on the debouncer's goroutine; its error is logged.
func (fw *FileWatcher) Watch(ctx context.Context, onReload func() error) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	if fw.closed {
		fw.mu.Unlock()
		return fmt.Errorf("watcher closed")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
	}()

	fw.logger.Info("File watcher started", "path", fw.root)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("File watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			fw.trackNewDirectory(event)
			if !fw.relevant(event) {
				continue
			}
			fw.logger.Debug("Rule file event", "path", event.Name, "op", event.Op.String())

			name, op := event.Name, event.Op.String()
			fw.debounce.Trigger(func() {
				fw.logger.Info("Triggering rule reload", "path", name, "op", op)
				if err := onReload(); err != nil {
					fw.logger.Error("Rule reload failed", "error", err)
				}
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

// Close stops pending reloads and releases the fsnotify watcher.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	fw.closed = true
	fw.mu.Unlock()

	fw.debounce.Stop()
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (fw *FileWatcher) trackNewDirectory(event fsnotify.Event) {
	if fw.file != "" || !event.Has(fsnotify.Create) || isHidden(event.Name) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := fw.addTree(event.Name); err != nil {
		fw.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
	}
}

// relevant reports whether event should trigger a reload.
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if fw.file != "" {
		return filepath.Clean(event.Name) == fw.file
	}
	return source.IsRuleFile(event.Name) && !isHidden(event.Name)
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Debouncer runs the most recently triggered callback once no trigger has
// arrived for the interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
	inflight sync.WaitGroup
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any callback not yet run.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || d.callback == nil {
		d.mu.Unlock()
		return
	}
	cb := d.callback
	d.callback = nil
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	cb()
}

// Stop cancels a pending callback and waits for a running one to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
	d.mu.Unlock()

	d.inflight.Wait()
}
