package pollphase

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned when Start is called more than once on
	// the same poller.
	ErrAlreadyStarted = errors.New("pollphase: poller already started")

	// ErrInvalidPhaseTransition is returned when an operation is not valid
	// for the current state, e.g. calling WithMore on a phase that has
	// already transitioned, or completing a poller that was never started.
	ErrInvalidPhaseTransition = errors.New("pollphase: invalid phase transition")

	// ErrInvalidConfig is returned by constructors and options for invalid
	// configuration, such as a non-positive poll interval.
	ErrInvalidConfig = errors.New("pollphase: invalid config")

	// ErrPollOperationFailed matches any [*PollError] via errors.Is.
	ErrPollOperationFailed = errors.New("pollphase: poll operation failed")
)

// PollError reports a failed tick. It terminates the loop that produced it,
// and is returned to whichever caller next joins that loop.
type PollError struct {
	// Items is the snapshot the operation was invoked with.
	Items ItemSet

	// Generation identifies the loop (phase) that ran the tick.
	// It is always 1 for a LockedPoller.
	Generation uint64

	// CorrelationID is set if the operation panicked. The full stack trace
	// is logged alongside it.
	CorrelationID string

	// Cause is the error returned by the operation.
	Cause error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("pollphase: poll operation failed (generation %d, items [%s]): %v", e.Generation, e.Items, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PollError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is [ErrPollOperationFailed].
func (e *PollError) Is(target error) bool {
	return target == ErrPollOperationFailed
}

// invalidTransition wraps ErrInvalidPhaseTransition with context.
func invalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPhaseTransition, fmt.Sprintf(format, args...))
}
