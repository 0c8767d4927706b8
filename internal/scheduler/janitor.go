// Package scheduler runs periodic maintenance for the checker service.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nuken/m3u-epg-checker/internal/config"
)

// Purger removes stored entries created before a cutoff.
type Purger interface {
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// ErrAlreadyStarted is returned by Start on a running janitor.
var ErrAlreadyStarted = errors.New("janitor already started")

// Janitor expires fixed playlists older than the retention period on a cron
// schedule.
type Janitor struct {
	mu sync.Mutex

	store     Purger
	retention time.Duration
	schedule  cron.Schedule
	spec      string
	logger    *slog.Logger
	now       func() time.Time
	onPurge   func(removed int)

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewJanitor creates a janitor that purges entries older than retention
// according to the 6-field cron expression spec.
func NewJanitor(store Purger, retention time.Duration, spec string) (*Janitor, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	schedule, err := config.CronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing purge schedule %q: %w", spec, err)
	}

	return &Janitor{
		store:     store,
		retention: retention,
		schedule:  schedule,
		spec:      spec,
		logger:    slog.Default(),
		now:       time.Now,
	}, nil
}

// WithLogger sets a custom logger.
func (j *Janitor) WithLogger(logger *slog.Logger) *Janitor {
	j.logger = logger
	return j
}

// OnPurge registers a callback invoked with the count after each purge.
func (j *Janitor) OnPurge(fn func(removed int)) *Janitor {
	j.onPurge = fn
	return j
}

// Start schedules purges until ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return ErrAlreadyStarted
	}

	j.ctx, j.cancel = context.WithCancel(ctx)
	j.cron = cron.New(cron.WithParser(config.CronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	j.cron.Schedule(j.schedule, cron.FuncJob(func() {
		_, _ = j.RunOnce(j.ctx)
	}))
	j.cron.Start()

	go func(ctx context.Context) {
		<-ctx.Done()
		j.Stop()
	}(j.ctx)

	j.logger.Info("janitor started",
		slog.String("schedule", j.spec),
		slog.Duration("retention", j.retention),
	)
	return nil
}

// Stop halts scheduling and waits for a running purge to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	j.logger.Info("janitor stopped")
}

// RunOnce purges expired entries immediately.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed, err := j.store.Purge(ctx, cutoff)
	if err != nil {
		j.logger.Error("purging fixed playlists failed",
			slog.Time("cutoff", cutoff),
			slog.String("error", err.Error()),
		)
		return removed, err
	}

	if removed > 0 {
		j.logger.Info("purged expired fixed playlists",
			slog.Int("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
	if j.onPurge != nil {
		j.onPurge(removed)
	}
	return removed, nil
}
