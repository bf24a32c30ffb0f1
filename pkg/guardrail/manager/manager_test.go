package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
	"kairo-hq/guardrails/pkg/guardrail/source"
	"kairo-hq/guardrails/pkg/telemetry/logging"
)

type reloadCall struct {
	source string
	result string
	rules  int
}

type recordingRecorder struct {
	mu    sync.Mutex
	calls []reloadCall
}

func (r *recordingRecorder) RecordReload(src, result string, _ time.Duration, rules int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, reloadCall{src, result, rules})
}

func (r *recordingRecorder) snapshot() []reloadCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reloadCall(nil), r.calls...)
}

func keywordRule(id string) guardrail.Rule {
	return guardrail.Rule{
		ID:       id,
		Category: guardrail.CategoryJailbreakDetection,
		Kind:     guardrail.KindKeywordSet,
		Target:   guardrail.TargetUserInput,
		Severity: guardrail.SeverityCritical,
		Keywords: &guardrail.KeywordParams{Phrases: []string{"developer mode"}},
	}
}

const ruleFile = `rules:
  - id: %s
    category: jailbreak-detection
    check: keyword-set
    target: user-input
    severity: critical
    keywords:
      phrases: [developer mode]
`

func writeRules(t *testing.T, path string, ids ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("rules:\n")
	for _, id := range ids {
		entry := strings.Replace(ruleFile, "%s", id, 1)
		b.WriteString(strings.TrimPrefix(entry, "rules:\n"))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestLoadPublishesRegistry(t *testing.T) {
	rec := &recordingRecorder{}
	m, err := New(source.NewMemorySource(keywordRule("a"), keywordRule("b")),
		WithLogger(logging.Discard()),
		WithRecorder(rec),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.Holder().Ready() {
		t.Fatal("holder ready before Load")
	}

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	reg := m.Holder().Current()
	if reg == nil || reg.Len() != 2 {
		t.Fatalf("registry = %v, want 2 rules", reg)
	}
	st := m.Status()
	if st.Source != "memory" || st.RuleCount != 2 || st.RuleVersion != reg.Version() || st.Reloads != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if st.LastError != nil {
		t.Errorf("LastError = %v", st.LastError)
	}
	calls := rec.snapshot()
	if len(calls) != 1 || calls[0] != (reloadCall{"memory", "success", 2}) {
		t.Errorf("recorded %+v", calls)
	}
}

func TestReloadFailureKeepsActiveRegistry(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(*source.MemorySource)
	}{
		{
			name:    "source error",
			corrupt: func(s *source.MemorySource) { s.Fail(errors.New("disk gone")) },
		},
		{
			name:    "duplicate rule ids",
			corrupt: func(s *source.MemorySource) { s.Set(keywordRule("a"), keywordRule("a")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source.NewMemorySource(keywordRule("a"))
			rec := &recordingRecorder{}
			m, _ := New(src, WithLogger(logging.Discard()), WithRecorder(rec))
			if err := m.Load(context.Background()); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			before := m.Holder().Current()

			tt.corrupt(src)
			if err := m.Reload(context.Background()); err == nil {
				t.Fatal("Reload() succeeded, want error")
			}

			if m.Holder().Current() != before {
				t.Error("active registry replaced after failed reload")
			}
			st := m.Status()
			if st.LastError == nil || st.Reloads != 1 || st.RuleCount != 1 {
				t.Errorf("Status() = %+v", st)
			}
			calls := rec.snapshot()
			if len(calls) != 2 || calls[1].result != "failure" {
				t.Errorf("recorded %+v", calls)
			}

			src.Set(keywordRule("a"), keywordRule("b"))
			if err := m.Reload(context.Background()); err != nil {
				t.Fatalf("recovery Reload() error = %v", err)
			}
			if got := m.Holder().Current().Len(); got != 2 {
				t.Errorf("rules after recovery = %d, want 2", got)
			}
			if m.Status().LastError != nil {
				t.Error("LastError not cleared after recovery")
			}
		})
	}
}

func TestWithHolderAndLoadOptions(t *testing.T) {
	holder := registry.NewHolder(nil)
	external := guardrail.Rule{
		ID:       "ext",
		Category: guardrail.CategoryNoDirectAnswer,
		Kind:     guardrail.KindExternal,
		Target:   guardrail.TargetAIOutput,
		Severity: guardrail.SeverityCritical,
		External: &guardrail.ExternalParams{Capability: "seda"},
	}

	m, _ := New(source.NewMemorySource(external),
		WithLogger(logging.Discard()),
		WithHolder(holder),
		WithLoadOptions(registry.WithCapabilities("other")),
	)
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("Load() accepted rule with unregistered capability")
	}
	if holder.Ready() {
		t.Fatal("holder published after failed load")
	}

	m, _ = New(source.NewMemorySource(external),
		WithLogger(logging.Discard()),
		WithHolder(holder),
		WithLoadOptions(registry.WithCapabilities("seda")),
	)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !holder.Ready() {
		t.Fatal("shared holder not published")
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RulesConfig
		wantName string
		wantErr  bool
	}{
		{name: "empty defaults to builtin", cfg: config.RulesConfig{}, wantName: "builtin"},
		{name: "builtin", cfg: config.RulesConfig{Source: "builtin"}, wantName: "builtin"},
		{name: "file", cfg: config.RulesConfig{Source: "file", Path: "rules"}, wantName: "file"},
		{
			name: "git",
			cfg: config.RulesConfig{Source: "git", Git: config.GitRulesConfig{
				Repository: "https://example.com/rules.git",
				Branch:     "main",
				Clone:      config.GitCloneConfig{LocalPath: t.TempDir()},
			}},
			wantName: "git",
		},
		{name: "git without repository", cfg: config.RulesConfig{Source: "git"}, wantErr: true},
		{name: "unknown", cfg: config.RulesConfig{Source: "s3"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(&tt.cfg, logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.wantName)
			}
		})
	}
}

func TestNewFromConfigBuiltin(t *testing.T) {
	m, err := NewFromConfig(&config.RulesConfig{Source: "builtin"}, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Holder().Current().Len() == 0 {
		t.Error("builtin registry is empty")
	}
}

func TestStartOptionsFromConfig(t *testing.T) {
	cfg := &config.RulesConfig{
		Source:         "file",
		Path:           "/etc/kairo/rules",
		Watch:          true,
		WatchDebounce:  250 * time.Millisecond,
		ReloadSchedule: "@every 5m",
	}
	got := StartOptionsFromConfig(cfg)
	want := StartOptions{WatchPath: "/etc/kairo/rules", Debounce: 250 * time.Millisecond, Schedule: "@every 5m"}
	if got != want {
		t.Errorf("StartOptionsFromConfig() = %+v, want %+v", got, want)
	}

	cfg.Source = "builtin"
	if got := StartOptionsFromConfig(cfg); got.WatchPath != "" {
		t.Errorf("WatchPath = %q for builtin source", got.WatchPath)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRules(t, path, "a")

	m, _ := New(source.NewFileSource(dir, 0, logging.Discard()), WithLogger(logging.Discard()))
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err := m.Start(context.Background(), StartOptions{WatchPath: dir, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	writeRules(t, path, "a", "b")
	waitFor(t, 5*time.Second, func() bool { return m.Holder().Current().Len() == 2 })

	// A broken edit leaves the last good rules active.
	if err := os.WriteFile(path, []byte("rules: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, func() bool { return m.Status().LastError != nil })
	if got := m.Holder().Current().Len(); got != 2 {
		t.Errorf("rules after broken edit = %d, want 2", got)
	}
}

func TestWatchSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	other := filepath.Join(dir, "notes.yaml")
	writeRules(t, path, "a")

	var reloads atomic.Int32
	w, err := NewFileWatcher(FileWatcherConfig{Path: path, Debounce: 20 * time.Millisecond}, logging.Discard())
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	if err := w.Add(); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx, func() error { reloads.Add(1); return nil })
	}()
	defer func() {
		cancel()
		<-done
		_ = w.Close()
	}()

	writeRules(t, other, "x")
	time.Sleep(100 * time.Millisecond)
	if reloads.Load() != 0 {
		t.Fatalf("sibling file triggered %d reloads", reloads.Load())
	}

	writeRules(t, path, "a", "b")
	waitFor(t, 5*time.Second, func() bool { return reloads.Load() >= 1 })
}

func TestNewFileWatcherValidation(t *testing.T) {
	if _, err := NewFileWatcher(FileWatcherConfig{}, nil); err == nil {
		t.Error("expected error for empty path")
	}
	w, err := NewFileWatcher(FileWatcherConfig{Path: filepath.Join(t.TempDir(), "missing")}, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	defer w.Close()
	if err := w.Add(); err == nil {
		t.Error("Add() succeeded for missing path")
	}
}

func TestStartStop(t *testing.T) {
	m, _ := New(source.NewMemorySource(keywordRule("a")), WithLogger(logging.Discard()))

	if err := m.Start(context.Background(), StartOptions{Schedule: "not a schedule"}); err == nil {
		t.Fatal("Start() accepted invalid schedule")
	}
	if err := m.Start(context.Background(), StartOptions{Schedule: "@every 1h"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(context.Background(), StartOptions{}); err == nil {
		t.Error("second Start() succeeded")
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if err := m.Start(context.Background(), StartOptions{}); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}
}

func TestSchedulerRunsReload(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler("@every 1s", func() error { runs.Add(1); return nil }, logging.Discard())
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.Start()
	if s.Next().IsZero() {
		t.Error("Next() is zero after Start")
	}
	waitFor(t, 3*time.Second, func() bool { return runs.Load() >= 1 })
	s.Stop()
}

func TestNewSchedulerValidation(t *testing.T) {
	if _, err := NewScheduler("@every 1m", nil, nil); err == nil {
		t.Error("expected error for nil reload")
	}
	for _, spec := range []string{"", "* * *", "@fortnightly"} {
		if _, err := NewScheduler(spec, func() error { return nil }, nil); err == nil {
			t.Errorf("NewScheduler(%q) succeeded", spec)
		}
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		d.Trigger(func() { calls.Add(1); last.Store(int32(i)) })
	}
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 1 })
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 1 || last.Load() != 5 {
		t.Errorf("calls = %d, last = %d, want 1 and 5", calls.Load(), last.Load())
	}
	d.Stop()
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("calls = %d after Stop", calls.Load())
	}
}
