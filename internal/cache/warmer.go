package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yachtvault/yachtvault/internal/logging"
)

// WarmFunc refreshes one or more cache entries.
type WarmFunc func(ctx context.Context) error

// Warmer runs a WarmFunc on a cron schedule.
type Warmer struct {
	schedule string
	job      WarmFunc
	timeout  time.Duration
	log      *logging.Logger
}

// NewWarmer validates schedule (standard cron syntax or descriptors such as
// "@every 10m") and returns a warmer for job.
func NewWarmer(schedule string, job WarmFunc, log *logging.Logger) (*Warmer, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cache warm schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Warmer{schedule: schedule, job: job, timeout: 30 * time.Second, log: log}, nil
}

// Run warms once immediately, then on every tick until ctx is cancelled. It
// waits for a running job to finish before returning.
func (w *Warmer) Run(ctx context.Context) error {
	w.warm(ctx)

	c := cron.New()
	if _, err := c.AddFunc(w.schedule, func() { w.warm(ctx) }); err != nil {
		return fmt.Errorf("schedule cache warmer: %w", err)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *Warmer) warm(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.job(ctx); err != nil {
		w.log.WithContext(ctx).WithError(err).Warn("cache warm failed")
		return
	}
	w.log.WithContext(ctx).WithField("duration_ms", time.Since(start).Milliseconds()).Debug("cache warmed")
}
