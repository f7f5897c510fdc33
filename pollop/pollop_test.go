package pollop

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"

	"github.com/y1hao/pollphase"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	op := Console(&buf)

	if err := op(context.Background(), []string{"1", "2", "3"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}
	if err := op(context.Background(), nil); err != nil {
		t.Fatalf("op() error = %v", err)
	}

	want := "Polling: 1, 2, 3\nPolling: \n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed")
}

func TestConsole_WriteError(t *testing.T) {
	if err := Console(failingWriter{})(context.Background(), []string{"1"}); err == nil {
		t.Error("op() expected error, got nil")
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	op := Log(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := op(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"msg=polling", `items="a, b"`, "count=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q, got: %s", want, out)
		}
	}
}

// fakePublisher records published messages.
type fakePublisher struct {
	mu       sync.Mutex
	err      error
	channels []string
	messages []string
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.(string))
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublish(t *testing.T) {
	pub := &fakePublisher{}
	op := RedisPublish(pub, "ticks")

	if err := op(context.Background(), []string{"1", "2"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}
	if err := op(context.Background(), []string{"1", "2", "3"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}

	if diff := cmp.Diff([]string{"ticks", "ticks"}, pub.channels); diff != "" {
		t.Errorf("channels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1,2", "1,2,3"}, pub.messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisPublish_Error(t *testing.T) {
	cause := errors.New("connection refused")
	op := RedisPublish(&fakePublisher{err: cause}, "ticks")

	err := op(context.Background(), []string{"1"})
	if !errors.Is(err, cause) {
		t.Fatalf("op() error = %v, want %v", err, cause)
	}
	if !strings.Contains(err.Error(), `"ticks"`) {
		t.Errorf("error = %q, want channel name", err)
	}
}

func TestRedisPublish_SatisfiedByClient(t *testing.T) {
	var _ Publisher = redis.UniversalClient(nil)
	var _ Publisher = (*redis.Client)(nil)
}

func TestChain(t *testing.T) {
	var calls []string
	record := func(name string, err error) pollphase.PollOperation {
		return func(context.Context, []string) error {
			calls = append(calls, name)
			return err
		}
	}

	cause := errors.New("second failed")
	op := Chain(record("first", nil), nil, record("second", cause), record("third", nil))

	if err := op(context.Background(), []string{"1"}); !errors.Is(err, cause) {
		t.Fatalf("op() error = %v, want %v", err, cause)
	}
	if diff := cmp.Diff([]string{"first", "second"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestChain_Empty(t *testing.T) {
	if err := Chain()(context.Background(), []string{"1"}); err != nil {
		t.Errorf("op() error = %v", err)
	}
}

func TestConsole_WithPoller(t *testing.T) {
	var buf bytes.Buffer
	p, err := pollphase.NewPhasedPoller(Console(&buf),
		pollphase.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	if err != nil {
		t.Fatalf("NewPhasedPoller() error = %v", err)
	}
	accepting, err := p.Start(context.Background(), "1", "2", "3")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// the first tick runs immediately, and has finished once WithTimeout returns
	timingOut, err := accepting.WithTimeout()
	if err != nil {
		t.Fatalf("WithTimeout() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = timingOut.WaitAndComplete(ctx)

	if !strings.HasPrefix(buf.String(), "Polling: 1, 2, 3\n") {
		t.Errorf("output = %q, want prefix %q", buf.String(), "Polling: 1, 2, 3\n")
	}
}
