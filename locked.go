package pollphase

import (
	"context"
	"sync"
)

// LockedPoller polls a shared, mutable item set from a single background
// loop, until no more items are expected and the grace period has elapsed
// since the last tick that expected more.
//
// The item set and the "more expected" flag are guarded by two independent
// mutexes, which are never held together. A tick therefore observes the
// flag and the items in two separate steps, and an AddMore that lands after
// the final tick's item read is never polled. This is a known defect, kept
// for contrast with [PhasedPoller], which does not have it.
//
// The typical lifecycle is:
//
//	p, err := pollphase.NewLockedPoller(op, []string{"1", "2", "3"})
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	p.AddMore("4")
//	return p.WaitAndComplete(ctx)
type LockedPoller struct {
	engine *engine

	itemsMu sync.Mutex
	items   []string

	hasMoreMu sync.Mutex
	hasMore   bool

	mu         sync.Mutex
	loop       *loopHandle
	completing bool
}

// NewLockedPoller creates a [LockedPoller] over a copy of the initial items.
// The poller does not poll until [LockedPoller.Start] is called.
//
// Returns an error wrapping [ErrInvalidConfig] if op is nil or an option is
// invalid.
func NewLockedPoller(op PollOperation, items []string, opts ...Option) (*LockedPoller, error) {
	e, err := newEngine(op, DesignLocked, opts)
	if err != nil {
		return nil, err
	}
	return &LockedPoller{
		engine:  e,
		items:   cloneStrings(items),
		hasMore: true,
	}, nil
}

// ID returns the unique identifier of this poller, as used in logs and
// reported via [Tick.PollerID].
func (p *LockedPoller) ID() string {
	return p.engine.id
}

// Start spawns the background loop, which ticks immediately, then once per
// poll interval.
//
// The context is passed to every [PollOperation] call. Cancelling it stops
// the loop at its next sleep, and the context's error is returned from
// [LockedPoller.WaitAndComplete]. If ctx is nil, context.Background() is used.
//
// Returns [ErrAlreadyStarted] if called more than once.
func (p *LockedPoller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loop != nil {
		return ErrAlreadyStarted
	}

	p.loop = p.engine.spawn(ctx, func(loopCtx context.Context) error {
		return p.run(ctx, loopCtx)
	})

	p.engine.logger.Info("poller started", "items", p.Items().String())

	return nil
}

// AddMore appends items to the shared item set. It may be called
// concurrently with itself and with the loop. Items added before the flag is
// cleared by [LockedPoller.WaitAndComplete] are guaranteed to be polled;
// items added afterwards may not be.
func (p *LockedPoller) AddMore(items ...string) {
	p.itemsMu.Lock()
	p.items = append(p.items, items...)
	p.itemsMu.Unlock()
}

// Items returns a snapshot of the current item set.
func (p *LockedPoller) Items() ItemSet {
	p.itemsMu.Lock()
	defer p.itemsMu.Unlock()
	return NewItemSet(p.items...)
}

// WaitAndComplete signals that no more items are expected, then blocks
// until the loop has exited, returning the loop's error (a [*PollError], or
// the Start context's error).
//
// If ctx is done first, ctx.Err() is returned. The loop is not cancelled,
// and keeps running until its grace period elapses.
//
// WaitAndComplete may only be called once, after Start. Other calls return
// an error wrapping [ErrInvalidPhaseTransition].
func (p *LockedPoller) WaitAndComplete(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	loop := p.loop
	switch {
	case loop == nil:
		p.mu.Unlock()
		return invalidTransition("wait and complete called before start")
	case p.completing:
		p.mu.Unlock()
		return invalidTransition("wait and complete called more than once")
	}
	p.completing = true
	p.mu.Unlock()

	p.hasMoreMu.Lock()
	p.hasMore = false
	p.hasMoreMu.Unlock()

	p.engine.logger.Info("no more items expected", "grace_period", p.engine.cfg.gracePeriod.String())

	if err := loop.wait(ctx); err != nil {
		return err
	}

	p.engine.logger.Info("poller completed", "items", p.Items().String())

	return nil
}

// run is the background loop. The flag and the items are read under their
// own locks, one after the other.
func (p *LockedPoller) run(base, ctx context.Context) error {
	clock := p.engine.clock()
	idleSince := clock.Now()
	hasMore := true

	for hasMore || clock.Since(idleSince) < p.engine.cfg.gracePeriod {
		p.hasMoreMu.Lock()
		hasMore = p.hasMore
		p.hasMoreMu.Unlock()

		if hasMore {
			idleSince = clock.Now()
		}

		items := p.Items()

		phase := PhaseAccepting
		if !hasMore {
			phase = PhaseTimingOut
		}

		if err := p.engine.tick(base, phase, 1, items); err != nil {
			return err
		}

		if !sleep(ctx, clock, p.engine.cfg.pollInterval) {
			return ctx.Err()
		}
	}

	return nil
}
