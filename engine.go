package pollphase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/y1hao/pollphase/internal/metrics"
)

// Design identifies which poller implementation produced a [Tick].
type Design string

const (
	// DesignLocked is the shared-state [LockedPoller].
	DesignLocked Design = "locked"

	// DesignPhased is the immutable-phase [PhasedPoller].
	DesignPhased Design = "phased"
)

// String returns the string representation of the design.
func (d Design) String() string {
	return string(d)
}

// PhaseKind tags the variants of [Phase].
type PhaseKind string

const (
	// PhaseAccepting means more items may still arrive.
	PhaseAccepting PhaseKind = "accepting"

	// PhaseTimingOut means no more items are expected, and the poller is
	// running out its grace period.
	PhaseTimingOut PhaseKind = "timing_out"

	// PhaseCompleted is terminal.
	PhaseCompleted PhaseKind = "completed"
)

// String returns the string representation of the phase kind.
func (k PhaseKind) String() string {
	return string(k)
}

// Tick describes a single invocation of the [PollOperation], as reported to
// hooks registered with [WithTickHook].
//
// For a [LockedPoller], Phase reflects the flag observed by the tick
// (accepting while more items are expected, timing_out afterwards), and
// Generation is always 1.
type Tick struct {
	// PollerID identifies the poller instance.
	PollerID string

	// Design is the poller implementation.
	Design Design

	// Phase is the phase the tick ran in.
	Phase PhaseKind

	// Generation identifies the loop that ran the tick, starting at 1 and
	// incremented on every phase transition.
	Generation uint64

	// Items is the snapshot the operation was invoked with.
	Items ItemSet

	// At is the clock time the tick started.
	At time.Time

	// Duration is the clock time taken by the operation.
	Duration time.Duration

	// Err is the tick's failure, if any. A non-nil Err is always a
	// [*PollError], and is the last tick of its loop.
	Err error
}

// engine is the machinery shared by both designs: running ticks with panic
// recovery, reporting them, and spawning joinable loops.
type engine struct {
	cfg    *config
	op     PollOperation
	id     string
	design Design
	logger *slog.Logger
}

func newEngine(op PollOperation, design Design, opts []Option) (*engine, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: poll operation cannot be nil", ErrInvalidConfig)
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()

	return &engine{
		cfg:    cfg,
		op:     op,
		id:     id,
		design: design,
		logger: cfg.logger.With("poller_id", id, "design", design.String()),
	}, nil
}

func (e *engine) clock() clockwork.Clock {
	return e.cfg.clock
}

// tick invokes the operation once, then reports the outcome via metrics,
// logs, and any tick hooks. The returned error is nil or a *PollError.
func (e *engine) tick(ctx context.Context, phase PhaseKind, generation uint64, items ItemSet) error {
	start := e.clock().Now()
	err := e.invokeSafe(ctx, generation, items)
	taken := e.clock().Since(start)

	metrics.ObserveTick(e.design.String(), phase.String(), taken, err != nil)

	t := Tick{
		PollerID:   e.id,
		Design:     e.design,
		Phase:      phase,
		Generation: generation,
		Items:      items,
		At:         start,
		Duration:   taken,
		Err:        err,
	}
	for _, hook := range e.cfg.tickHooks {
		e.invokeHookSafe(hook, t)
	}

	logAttrs := []any{
		"phase", phase.String(),
		"generation", generation,
		"items", items.String(),
	}
	if err != nil {
		e.logger.Error("poll operation failed", append(logAttrs, "error", err.Error())...)
	} else {
		e.logger.Debug("poll completed", logAttrs...)
	}

	return err
}

// invokeSafe calls the operation with panic recovery.
// If the operation panics, it logs the full stack trace with a correlation ID
// and returns a *PollError containing the ID.
func (e *engine) invokeSafe(ctx context.Context, generation uint64, items ItemSet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			e.logger.Error("poll operation panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = &PollError{
				Items:         items,
				Generation:    generation,
				CorrelationID: correlationID,
				Cause:         fmt.Errorf("panic (correlation_id: %s): %v", correlationID, r),
			}
		}
	}()

	if err := e.op(ctx, items.Items()); err != nil {
		return &PollError{
			Items:      items,
			Generation: generation,
			Cause:      err,
		}
	}
	return nil
}

// invokeHookSafe calls a tick hook with panic recovery.
// Panics are logged but do not propagate.
func (e *engine) invokeHookSafe(hook func(Tick), t Tick) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick hook panicked",
				"panic", r,
				"generation", t.Generation,
			)
		}
	}()
	hook(t)
}

// loopHandle is a cooperative cancellation signal paired with a joinable
// background goroutine. Cancelling only prevents the next tick; it never
// interrupts an in-flight operation.
type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	// err is written once, before done is closed
	err error
}

// spawn runs fn in a new goroutine, with a context derived from parent that
// is cancelled by loopHandle.stop.
func (e *engine) spawn(parent context.Context, fn func(ctx context.Context) error) *loopHandle {
	ctx, cancel := context.WithCancel(parent)
	h := &loopHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	design := e.design.String()
	metrics.LoopStarted(design)

	go func() {
		defer close(h.done)
		defer metrics.LoopStopped(design)
		defer cancel()
		h.err = fn(ctx)
	}()

	return h
}

// stop requests cancellation, then blocks until the loop has exited,
// returning its error.
func (h *loopHandle) stop() error {
	h.cancel()
	<-h.done
	return h.err
}

// wait blocks until the loop exits or ctx is done, without cancelling the
// loop.
func (h *loopHandle) wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleep blocks for d on the clock, returning false if ctx is done first.
// The timer is always stopped, so an abandoned sleep leaves nothing pending
// on the clock.
func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}

	timer := clock.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.Chan():
		return true
	}
}
