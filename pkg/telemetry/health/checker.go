package health

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// Probe and check status values.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusNotReady  = "not_ready"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a check when New is given zero.
const DefaultCheckTimeout = 5 * time.Second

// ErrCheckTimeout is reported for a check that outlives its timeout.
var ErrCheckTimeout = errors.New("health check timeout")

// CheckFunc returns nil when the dependency it probes is usable.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string        `json:"status"`
	Optional bool          `json:"optional,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Status is a probe response body.
type Status struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type check struct {
	fn       CheckFunc
	optional bool
}

// Checker aggregates dependency checks into readiness. A failing required
// check (the rule registry) makes the process not ready. A failing optional
// check (the verdict cache) only degrades it, since checks still run without
// the dependency.
type Checker struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]check
}

// New returns a checker applying timeout to each check.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{timeout: timeout, checks: make(map[string]check)}
}

// RegisterCheck adds or replaces a required check.
func (c *Checker) RegisterCheck(name string, fn CheckFunc) {
	c.register(name, check{fn: fn})
}

// RegisterOptionalCheck adds or replaces a check whose failure degrades the
// process without making it unready.
func (c *Checker) RegisterOptionalCheck(name string, fn CheckFunc) {
	c.register(name, check{fn: fn, optional: true})
}

func (c *Checker) register(name string, ck check) {
	c.mu.Lock()
	c.checks[name] = ck
	c.mu.Unlock()
}

// ListChecks returns the registered names, sorted.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CheckLiveness always reports ok while the process can answer.
func (c *Checker) CheckLiveness(context.Context) Status {
	return Status{Status: StatusOK, Timestamp: time.Now()}
}

// CheckReadiness runs every check in parallel and folds the results.
func (c *Checker) CheckReadiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ck := range c.checks {
		checks[name] = ck
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, ck := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, ck.fn)
			res.Optional = ck.optional
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return Status{Status: fold(results), Checks: results, Timestamp: time.Now()}
}

func fold(results map[string]CheckResult) string {
	status := StatusReady
	for _, res := range results {
		if res.Status == StatusOK {
			continue
		}
		if !res.Optional {
			return StatusNotReady
		}
		status = StatusDegraded
	}
	return status
}

func (c *Checker) run(ctx context.Context, fn CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	res := CheckResult{Status: StatusOK, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Message = err.Error()
	}
	return res
}
