package pollphase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/y1hao/pollphase/internal/metrics"
)

// Phase is the state of a [PhasedPoller]. It is implemented by
// [*AcceptingPhase], [*TimingOutPhase] and [CompletedPhase].
//
// A phase's item snapshot and generation never change. Transitions return a
// new phase, and leave the old one unusable.
type Phase interface {
	// Kind identifies the variant.
	Kind() PhaseKind

	// Items returns the snapshot owned by the phase.
	Items() ItemSet

	// Generation is 1 for the first phase, incremented on every transition.
	Generation() uint64
}

var (
	_ Phase = (*AcceptingPhase)(nil)
	_ Phase = (*TimingOutPhase)(nil)
	_ Phase = CompletedPhase{}
)

// PhasedPoller polls an immutable item snapshot, modelling "add more items"
// and "stop accepting items" as transitions between phases, rather than as
// mutations of shared state.
//
// Each phase owns exactly one background loop. A transition cancels that
// loop, waits for it to exit, and only then spawns the next phase's loop, so
// no two loops of the same poller ever tick concurrently, and no loop ever
// observes a partially updated item set.
//
// The typical lifecycle is:
//
//	p, err := pollphase.NewPhasedPoller(op)
//	if err != nil {
//	    return err
//	}
//	accepting, err := p.Start(ctx, "1", "2", "3")
//	if err != nil {
//	    return err
//	}
//	if accepting, err = accepting.WithMore("4"); err != nil {
//	    return err
//	}
//	timingOut, err := accepting.WithTimeout()
//	if err != nil {
//	    return err
//	}
//	_, err = timingOut.WaitAndComplete(ctx)
//	return err
type PhasedPoller struct {
	engine  *engine
	started atomic.Bool
}

// NewPhasedPoller creates a [PhasedPoller]. Nothing is polled until
// [PhasedPoller.Start] is called.
//
// Returns an error wrapping [ErrInvalidConfig] if op is nil or an option is
// invalid.
func NewPhasedPoller(op PollOperation, opts ...Option) (*PhasedPoller, error) {
	e, err := newEngine(op, DesignPhased, opts)
	if err != nil {
		return nil, err
	}
	return &PhasedPoller{engine: e}, nil
}

// ID returns the unique identifier of this poller, as used in logs and
// reported via [Tick.PollerID].
func (p *PhasedPoller) ID() string {
	return p.engine.id
}

// Start enters the first [AcceptingPhase], spawning its loop over a snapshot
// of items.
//
// The context is passed to every [PollOperation] call, and bounds every loop
// of this poller. If ctx is nil, context.Background() is used.
//
// Returns [ErrAlreadyStarted] if called more than once.
func (p *PhasedPoller) Start(ctx context.Context, items ...string) (*AcceptingPhase, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	if ctx == nil {
		ctx = context.Background()
	}

	phase := newAcceptingPhase(p.engine, ctx, NewItemSet(items...), 1)

	p.engine.logger.Info("poller started", "items", phase.items.String())

	return phase, nil
}

// AcceptingPhase polls its snapshot until it transitions, either to another
// AcceptingPhase via [AcceptingPhase.WithMore], or to a [TimingOutPhase] via
// [AcceptingPhase.WithTimeout]. Only one transition is permitted per phase.
type AcceptingPhase struct {
	engine     *engine
	ctx        context.Context
	items      ItemSet
	generation uint64
	loop       *loopHandle
	// transitioned guards against reuse of a stale handle; loops never read it
	transitioned atomic.Bool
}

func newAcceptingPhase(e *engine, ctx context.Context, items ItemSet, generation uint64) *AcceptingPhase {
	clock := e.clock()
	interval := e.cfg.pollInterval

	return &AcceptingPhase{
		engine:     e,
		ctx:        ctx,
		items:      items,
		generation: generation,
		// the loop closes over its own copies of the snapshot and generation
		loop: e.spawn(ctx, func(loopCtx context.Context) error {
			for {
				if err := e.tick(ctx, PhaseAccepting, generation, items); err != nil {
					return err
				}
				if !sleep(loopCtx, clock, interval) {
					return ctx.Err()
				}
			}
		}),
	}
}

// Kind returns [PhaseAccepting].
func (a *AcceptingPhase) Kind() PhaseKind {
	return PhaseAccepting
}

// Items returns the snapshot polled by this phase.
func (a *AcceptingPhase) Items() ItemSet {
	return a.items
}

// Generation returns the phase generation.
func (a *AcceptingPhase) Generation() uint64 {
	return a.generation
}

// WithMore stops this phase's loop, waits for any in-flight tick to finish,
// then returns a new AcceptingPhase polling this phase's items followed by
// the given items.
//
// If this phase's loop had already failed, its [*PollError] is returned and
// no new phase is started. Returns an error wrapping
// [ErrInvalidPhaseTransition] if this phase has already transitioned.
func (a *AcceptingPhase) WithMore(items ...string) (*AcceptingPhase, error) {
	if err := a.beginTransition("with more"); err != nil {
		return nil, err
	}

	if err := a.loop.stop(); err != nil {
		return nil, err
	}

	next := newAcceptingPhase(a.engine, a.ctx, a.items.Append(items...), a.generation+1)

	a.logTransition(next)

	return next, nil
}

// WithTimeout stops this phase's loop, waits for any in-flight tick to
// finish, then returns a [TimingOutPhase] over the same items, which polls
// until the grace period elapses.
//
// If this phase's loop had already failed, its [*PollError] is returned.
// Returns an error wrapping [ErrInvalidPhaseTransition] if this phase has
// already transitioned.
func (a *AcceptingPhase) WithTimeout() (*TimingOutPhase, error) {
	if err := a.beginTransition("with timeout"); err != nil {
		return nil, err
	}

	if err := a.loop.stop(); err != nil {
		return nil, err
	}

	next := newTimingOutPhase(a.engine, a.ctx, a.items, a.generation+1)

	a.logTransition(next)

	return next, nil
}

func (a *AcceptingPhase) beginTransition(op string) error {
	if a == nil || a.engine == nil {
		return invalidTransition("%s called on a nil accepting phase", op)
	}
	if !a.transitioned.CompareAndSwap(false, true) {
		return invalidTransition("%s called on accepting phase %d, which has already transitioned", op, a.generation)
	}
	return nil
}

func (a *AcceptingPhase) logTransition(next Phase) {
	metrics.ObserveTransition(a.Kind().String(), next.Kind().String())
	a.engine.logger.Info("phase transition",
		"from", a.Kind().String(),
		"to", next.Kind().String(),
		"generation", next.Generation(),
		"items", next.Items().String(),
	)
}

// TimingOutPhase polls its snapshot until its grace period, which started
// when the phase was constructed, has elapsed. It does not accept more
// items.
type TimingOutPhase struct {
	engine     *engine
	items      ItemSet
	generation uint64
	deadline   time.Time
	loop       *loopHandle
	// completed guards against a second WaitAndComplete; loops never read it
	completed atomic.Bool
}

func newTimingOutPhase(e *engine, ctx context.Context, items ItemSet, generation uint64) *TimingOutPhase {
	clock := e.clock()
	interval := e.cfg.pollInterval
	deadline := clock.Now().Add(e.cfg.gracePeriod)

	return &TimingOutPhase{
		engine:     e,
		items:      items,
		generation: generation,
		deadline:   deadline,
		loop: e.spawn(ctx, func(loopCtx context.Context) error {
			for clock.Now().Before(deadline) {
				if err := e.tick(ctx, PhaseTimingOut, generation, items); err != nil {
					return err
				}
				if !sleep(loopCtx, clock, interval) {
					return ctx.Err()
				}
			}
			return nil
		}),
	}
}

// Kind returns [PhaseTimingOut].
func (t *TimingOutPhase) Kind() PhaseKind {
	return PhaseTimingOut
}

// Items returns the final snapshot.
func (t *TimingOutPhase) Items() ItemSet {
	return t.items
}

// Generation returns the phase generation.
func (t *TimingOutPhase) Generation() uint64 {
	return t.generation
}

// Deadline returns the clock time at which the grace period ends. The loop
// does not start a tick at or after the deadline.
func (t *TimingOutPhase) Deadline() time.Time {
	return t.deadline
}

// WaitAndComplete blocks until the loop has run out its grace period,
// returning the [CompletedPhase], or the loop's error.
//
// If ctx is done first, the loop is cancelled and joined, and ctx.Err() is
// returned, unless the loop had already failed. WaitAndComplete may only be called once; further calls return an
// error wrapping [ErrInvalidPhaseTransition].
func (t *TimingOutPhase) WaitAndComplete(ctx context.Context) (CompletedPhase, error) {
	if t == nil || t.engine == nil {
		return CompletedPhase{}, invalidTransition("wait and complete called on a nil timing out phase")
	}
	if !t.completed.CompareAndSwap(false, true) {
		return CompletedPhase{}, invalidTransition("wait and complete called more than once on phase %d", t.generation)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-t.loop.done:
	case <-ctx.Done():
		var pollErr *PollError
		if err := t.loop.stop(); errors.As(err, &pollErr) {
			return CompletedPhase{}, err
		}
		return CompletedPhase{}, ctx.Err()
	}

	if err := t.loop.err; err != nil {
		return CompletedPhase{}, err
	}

	next := CompletedPhase{items: t.items, generation: t.generation + 1}

	metrics.ObserveTransition(t.Kind().String(), next.Kind().String())
	t.engine.logger.Info("poller completed",
		"generation", next.generation,
		"items", t.items.String(),
	)

	return next, nil
}

// CompletedPhase is terminal, and holds no running loop.
type CompletedPhase struct {
	items      ItemSet
	generation uint64
}

// Kind returns [PhaseCompleted].
func (c CompletedPhase) Kind() PhaseKind {
	return PhaseCompleted
}

// Items returns the final snapshot.
func (c CompletedPhase) Items() ItemSet {
	return c.items
}

// Generation returns the phase generation.
func (c CompletedPhase) Generation() uint64 {
	return c.generation
}
