// Package manager owns the active rule registry. It loads rules from a
// source, publishes them through a registry.Holder and reloads them on file
// changes or on a cron schedule. A failed reload never replaces the
// registry that is already serving checks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/source"
	"kairo-hq/guardrails/pkg/telemetry/logging"
)

// Reload outcomes passed to ReloadRecorder.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// ReloadRecorder receives one observation per load attempt.
// *metrics.Collector satisfies it.
type ReloadRecorder interface {
	RecordReload(source, result string, duration time.Duration, rules int)
}

type nopRecorder struct{}

func (nopRecorder) RecordReload(string, string, time.Duration, int) {}

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("manager stopped")

// Status describes the most recent load attempt.
type Status struct {
	Source      string
	RuleVersion string
	RuleCount   int
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
	Reloads     int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder reports every load attempt to r.
func WithRecorder(r ReloadRecorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLoadOptions passes opts to registry.Load on every load.
func WithLoadOptions(opts ...registry.LoadOption) Option {
	return func(m *Manager) {
		m.loadOpts = append(m.loadOpts, opts...)
	}
}

// WithHolder publishes into h instead of a fresh holder.
func WithHolder(h *registry.Holder) Option {
	return func(m *Manager) {
		if h != nil {
			m.holder = h
		}
	}
}

// Manager loads rules from a Source and publishes them.
type Manager struct {
	source   source.Source
	holder   *registry.Holder
	logger   *slog.Logger
	recorder ReloadRecorder
	loadOpts []registry.LoadOption

	// reloadMu serializes loads so two reloads never race on Swap.
	reloadMu sync.Mutex

	mu     sync.RWMutex
	status Status

	runMu     sync.Mutex
	running   bool
	stopped   bool
	cancel    context.CancelFunc
	watcher   *FileWatcher
	scheduler *Scheduler
	wg        sync.WaitGroup
}

// New returns a manager for src. Nothing is loaded until Load is called.
func New(src source.Source, opts ...Option) (*Manager, error) {
	if src == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}
	m := &Manager{
		source:   src,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.holder == nil {
		m.holder = registry.NewHolder(nil)
	}
	m.status.Source = src.Name()
	return m, nil
}

// NewFromConfig builds the source named by cfg.Source and a manager around it.
func NewFromConfig(cfg *config.RulesConfig, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rules config cannot be nil")
	}
	m := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	src, err := NewSource(cfg, m.logger)
	if err != nil {
		return nil, err
	}
	return New(src, opts...)
}

// NewSource returns the rule source selected by cfg.Source.
func NewSource(cfg *config.RulesConfig, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source {
	case "", "builtin":
		return source.NewBuiltinSource(), nil
	case "file":
		return source.NewFileSource(cfg.Path, cfg.MaxFileSize, logger), nil
	case "git":
		git := cfg.Git
		return source.NewGitSource(&git, cfg.MaxFileSize, logger)
	default:
		return nil, fmt.Errorf("unknown rule source %q", cfg.Source)
	}
}

// Holder returns the holder the manager publishes into.
func (m *Manager) Holder() *registry.Holder {
	return m.holder
}

// Source returns the rule source.
func (m *Manager) Source() source.Source {
	return m.source
}

// Load performs the initial load. It is Reload under a different log message
// and exists so startup failures read clearly in logs.
func (m *Manager) Load(ctx context.Context) error {
	return m.load(ctx, "Loading rules")
}

// Reload loads the source again and swaps the registry on success. On
// failure the current registry stays active and the error is returned.
func (m *Manager) Reload(ctx context.Context) error {
	return m.load(ctx, "Reloading rules")
}

func (m *Manager) load(ctx context.Context, msg string) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	ctx = logging.WithReloadID(ctx, uuid.NewString())
	name := m.source.Name()
	start := time.Now()
	m.logger.InfoContext(ctx, msg, "source", name)

	reg, err := m.build(ctx)
	duration := time.Since(start)

	m.mu.Lock()
	m.status.LastAttempt = start
	m.status.LastError = err
	if err == nil {
		m.status.LastSuccess = start
		m.status.RuleVersion = reg.Version()
		m.status.RuleCount = reg.Len()
		m.status.Reloads++
	}
	m.mu.Unlock()

	if err != nil {
		m.recorder.RecordReload(name, resultFailure, duration, 0)
		attrs := []any{"source", name, "error", err, "duration_ms", duration.Milliseconds()}
		if cur := m.holder.Current(); cur != nil {
			attrs = append(attrs, "active_version", cur.Version())
		}
		m.logger.ErrorContext(ctx, "Rule load failed, keeping active rules", attrs...)
		return err
	}

	previous := m.holder.Swap(reg)
	m.recorder.RecordReload(name, resultSuccess, duration, reg.Len())

	attrs := []any{
		"source", name,
		"rules", reg.Len(),
		"version", reg.Version(),
		"duration_ms", duration.Milliseconds(),
	}
	if previous != nil {
		attrs = append(attrs, "previous_version", previous.Version())
	}
	m.logger.InfoContext(ctx, "Rules loaded", attrs...)
	return nil
}

func (m *Manager) build(ctx context.Context) (*registry.Registry, error) {
	rules, err := m.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s rules: %w", m.source.Name(), err)
	}
	reg, err := registry.Load(rules, m.loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}

// Status returns a snapshot of the most recent load attempt.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// StartOptions selects the background reload triggers.
type StartOptions struct {
	// WatchPath enables the file watcher on this file or directory.
	WatchPath string
	// Debounce coalesces file events. Zero uses DefaultDebounce.
	Debounce time.Duration
	// Schedule is a cron expression for periodic reloads.
	Schedule string
}

// StartOptionsFromConfig maps rule configuration onto StartOptions.
func StartOptionsFromConfig(cfg *config.RulesConfig) StartOptions {
	opts := StartOptions{
		Debounce: cfg.WatchDebounce,
		Schedule: cfg.ReloadSchedule,
	}
	if cfg.Watch && cfg.Source == "file" {
		opts.WatchPath = cfg.Path
	}
	return opts
}

// Start launches the configured reload triggers in the background. It
// returns once they are running; Stop or cancelling ctx ends them.
func (m *Manager) Start(ctx context.Context, opts StartOptions) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.running {
		return fmt.Errorf("manager already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	reload := func() error { return m.Reload(ctx) }

	if opts.Schedule != "" {
		sched, err := NewScheduler(opts.Schedule, reload, m.logger)
		if err != nil {
			cancel()
			return err
		}
		m.scheduler = sched
	}

	if opts.WatchPath != "" {
		w, err := NewFileWatcher(FileWatcherConfig{
			Path:     opts.WatchPath,
			Debounce: opts.Debounce,
		}, m.logger)
		if err != nil {
			cancel()
			return err
		}
		if err := w.Add(); err != nil {
			_ = w.Close()
			cancel()
			return err
		}
		m.watcher = w
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := w.Watch(ctx, reload); err != nil {
				m.logger.Error("File watcher exited", "error", err)
			}
		}()
	}

	if m.scheduler != nil {
		m.scheduler.Start()
	}

	m.cancel = cancel
	m.running = true
	return nil
}

// Stop ends the background triggers and waits for an in-flight reload
// started by them to finish. It is safe to call more than once.
func (m *Manager) Stop() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.stopped = true
	if !m.running {
		return nil
	}
	m.running = false

	m.cancel()
	var err error
	if m.scheduler != nil {
		m.scheduler.Stop()
		m.scheduler = nil
	}
	if m.watcher != nil {
		m.wg.Wait()
		err = m.watcher.Close()
		m.watcher = nil
	}
	return err
}
