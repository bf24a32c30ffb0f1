package manager

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler reloads rules on a cron schedule. Standard five-field
// expressions and descriptors such as "@every 5m" are accepted. A run that
// would overlap a still-running reload is skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *slog.Logger
}

// NewScheduler parses spec and prepares a scheduler calling reload.
func NewScheduler(spec string, reload func() error, logger *slog.Logger) (*Scheduler, error) {
	if reload == nil {
		return nil, fmt.Errorf("reload function cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{cron: c, spec: spec, logger: logger}

	_, err := c.AddFunc(spec, func() {
		start := time.Now()
		if err := reload(); err != nil {
			s.logger.Error("Scheduled rule reload failed", "schedule", spec, "error", err)
			return
		}
		s.logger.Debug("Scheduled rule reload finished",
			"schedule", spec,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Rule reload schedule started", "schedule", s.spec)
}

// Next returns the next activation time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop halts the schedule and waits for a running reload to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
