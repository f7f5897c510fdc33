// Package scenario replays a configured item schedule against either poller
// design: start with the initial items, apply each timed addition, then stop
// accepting items and wait for the poller to complete.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/y1hao/pollphase"
	"github.com/y1hao/pollphase/config"
)

// Runner drives one scenario run.
type Runner struct {
	cfg    *config.Config
	op     pollphase.PollOperation
	clock  clockwork.Clock
	logger *slog.Logger
	opts   []pollphase.Option
}

// New creates a [Runner]. The clock times the additions, and is passed to
// the poller along with the configured cadence. Nil clock and logger fall
// back to the real clock and slog.Default(). Extra options are applied after
// the configured ones.
func New(cfg *config.Config, op pollphase.PollOperation, clock clockwork.Clock, logger *slog.Logger, opts ...pollphase.Option) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		op:     op,
		clock:  clock,
		logger: logger,
		opts:   append(config.PollerOptions(cfg, clock, logger), opts...),
	}
}

// Run dispatches to [Runner.RunLocked] or [Runner.RunPhased].
func (r *Runner) Run(ctx context.Context, design pollphase.Design) error {
	switch design {
	case pollphase.DesignLocked:
		return r.RunLocked(ctx)
	case pollphase.DesignPhased:
		return r.RunPhased(ctx)
	}
	return fmt.Errorf("unknown design %q", design)
}

// RunLocked runs the scenario against a [pollphase.LockedPoller].
func (r *Runner) RunLocked(ctx context.Context) error {
	p, err := pollphase.NewLockedPoller(r.op, r.cfg.Items, r.opts...)
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}

	for i, add := range r.cfg.Additions {
		if err := r.wait(ctx, add.After.Duration()); err != nil {
			return err
		}
		r.logger.Info("adding items", "design", pollphase.DesignLocked.String(), "step", i+1, "items", add.Items)
		p.AddMore(add.Items...)
	}

	return p.WaitAndComplete(ctx)
}

// RunPhased runs the scenario against a [pollphase.PhasedPoller].
func (r *Runner) RunPhased(ctx context.Context) error {
	p, err := pollphase.NewPhasedPoller(r.op, r.opts...)
	if err != nil {
		return err
	}
	accepting, err := p.Start(ctx, r.cfg.Items...)
	if err != nil {
		return err
	}

	for i, add := range r.cfg.Additions {
		if err := r.wait(ctx, add.After.Duration()); err != nil {
			return err
		}
		r.logger.Info("adding items", "design", pollphase.DesignPhased.String(), "step", i+1, "items", add.Items)
		if accepting, err = accepting.WithMore(add.Items...); err != nil {
			return err
		}
	}

	timingOut, err := accepting.WithTimeout()
	if err != nil {
		return err
	}
	_, err = timingOut.WaitAndComplete(ctx)
	return err
}

// wait sleeps for d on the runner's clock, or until ctx is done.
func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := r.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
