package pollphase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickRecorder collects ticks reported via WithTickHook.
type tickRecorder struct {
	mu    sync.Mutex
	ticks []Tick
}

func (r *tickRecorder) hook(t Tick) {
	r.mu.Lock()
	r.ticks = append(r.ticks, t)
	r.mu.Unlock()
}

func (r *tickRecorder) all() []Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Tick(nil), r.ticks...)
}

// snapshots returns the items of every recorded tick, optionally filtered by
// generation (0 means all).
func (r *tickRecorder) snapshots(generation uint64) [][]string {
	var out [][]string
	for _, t := range r.all() {
		if generation == 0 || t.Generation == generation {
			out = append(out, t.Items.Items())
		}
	}
	return out
}

// count returns the number of ticks that polled the given item.
func (r *tickRecorder) count(item string) int {
	var n int
	for _, t := range r.all() {
		for _, v := range t.Items.Items() {
			if v == item {
				n++
			}
		}
	}
	return n
}

// noopOp is a PollOperation that does nothing.
func noopOp(context.Context, []string) error {
	return nil
}

// waitForSleep blocks until exactly one loop is sleeping on the fake clock.
func waitForSleep(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("timed out waiting for loop to sleep: %v", err)
	}
}

// step waits for the loop to sleep, then advances the clock by d.
func step(t *testing.T, clock *clockwork.FakeClock, d time.Duration) {
	t.Helper()
	waitForSleep(t, clock)
	clock.Advance(d)
}

// sleeping returns a channel that is closed once a loop is sleeping on the
// clock. The wait is abandoned when ctx is done.
func sleeping(ctx context.Context, clock *clockwork.FakeClock) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		if clock.BlockUntilContext(ctx, 1) == nil {
			close(ch)
		}
	}()
	return ch
}

// advanceUntilDone advances the clock by d until done receives, returning
// the number of advances it took, and the received error. It fails the test
// after limit advances.
func advanceUntilDone(t *testing.T, clock *clockwork.FakeClock, d time.Duration, limit int, done <-chan error) (int, error) {
	t.Helper()
	for i := 1; i <= limit; i++ {
		clock.Advance(d)

		ctx, cancel := context.WithCancel(context.Background())
		select {
		case err := <-done:
			cancel()
			return i, err
		case <-sleeping(ctx, clock):
			cancel()
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatalf("timed out after advance %d", i)
		}
	}
	t.Fatalf("not done after %d advances", limit)
	return 0, nil
}

// eventually polls cond until it returns true, failing the test after 5s.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 5s")
		}
		time.Sleep(time.Millisecond)
	}
}
