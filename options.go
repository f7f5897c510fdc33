package pollphase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultGracePeriod  = 5 * time.Second
)

// config holds mutable state during poller construction.
type config struct {
	pollInterval time.Duration
	gracePeriod  time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
	tickHooks    []func(Tick)
}

// Option configures a [LockedPoller] or [PhasedPoller] during construction.
//
// Options return an error wrapping [ErrInvalidConfig] if validation fails.
//
// Built-in options: [WithPollInterval], [WithGracePeriod], [WithClock],
// [WithLogger], [WithTickHook].
type Option func(*config) error

// newConfig applies the options over the defaults.
func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		pollInterval: defaultPollInterval,
		gracePeriod:  defaultGracePeriod,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.clock == nil {
		cfg.clock = clockwork.NewRealClock()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return cfg, nil
}

// WithPollInterval sets the cadence between ticks. Defaults to 1 second.
//
// Example:
//
//	p, err := pollphase.NewPhasedPoller(op,
//	    pollphase.WithPollInterval(500*time.Millisecond),
//	)
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidConfig, d)
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithGracePeriod sets how long a poller keeps ticking once no more items
// are expected. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithGracePeriod(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("%w: grace period must be positive, got %s", ErrInvalidConfig, d)
		}
		cfg.gracePeriod = d
		return nil
	}
}

// WithClock sets the clock used for the cadence, the idle timer and phase
// deadlines. Tests inject a [clockwork.FakeClock] to avoid real-time delays.
//
// Returns an error if the clock is nil.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *config) error {
		if clock == nil {
			return fmt.Errorf("%w: clock cannot be nil", ErrInvalidConfig)
		}
		cfg.clock = clock
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
		}
		cfg.logger = logger
		return nil
	}
}

// WithTickHook registers a function called after every tick, from the loop
// goroutine, with the outcome of that tick. Hooks run in registration order
// and must not block; panics are recovered and logged.
//
// Nil hooks are silently ignored.
func WithTickHook(hook func(Tick)) Option {
	return func(cfg *config) error {
		if hook == nil {
			return nil
		}
		cfg.tickHooks = append(cfg.tickHooks, hook)
		return nil
	}
}
