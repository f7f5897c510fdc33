// Package pollphase provides two background pollers that repeatedly invoke a
// [PollOperation] over a growing set of item identifiers, and shut down once
// no more items are expected and a grace period has elapsed.
//
// Both pollers implement the same informal contract: accept items, poll
// repeatedly, accept more items, eventually stop after an idle period. They
// differ in how they let a producer add items while the loop is running.
//
// # LockedPoller
//
// [LockedPoller] keeps the item set and a "more expected" flag as shared
// mutable state, each behind its own mutex. It is simple, but a tick reads
// the two in separate steps, so an item added right as the poller times out
// may never be polled:
//
//	p, _ := pollphase.NewLockedPoller(op, []string{"1", "2", "3"})
//	_ = p.Start(ctx)
//	p.AddMore("4")
//	err := p.WaitAndComplete(ctx)
//
// # PhasedPoller
//
// [PhasedPoller] never mutates state observed by a running loop. Each phase
// owns an immutable [ItemSet] and exactly one loop. Adding items, or ceasing
// to accept them, is a transition: the current loop is cancelled and joined,
// and the next phase is built from the merged snapshot:
//
//	p, _ := pollphase.NewPhasedPoller(op)
//	accepting, _ := p.Start(ctx, "1", "2", "3")
//	accepting, _ = accepting.WithMore("4")
//	timingOut, _ := accepting.WithTimeout()
//	_, err := timingOut.WaitAndComplete(ctx)
//
// Operations only exist on the phase types that permit them, and each phase
// handle may transition only once.
//
// # Configuration
//
// Both pollers use the functional options pattern:
//
//	p, err := pollphase.NewPhasedPoller(op,
//	    pollphase.WithPollInterval(time.Second),
//	    pollphase.WithGracePeriod(5*time.Second),
//	    pollphase.WithLogger(logger),
//	)
//
// [WithClock] accepts any [clockwork.Clock], so tests can drive the cadence
// and grace period with a fake clock.
//
// # Errors
//
// A failing (or panicking) [PollOperation] ends its loop, and surfaces as a
// [*PollError] from the next call that joins that loop. Nothing is retried.
// Misuse, such as reusing a stale phase, returns [ErrInvalidPhaseTransition].
//
// Ready-made operations live in the pollop package.
package pollphase
