package config

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/y1hao/pollphase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildOperation_Console(t *testing.T) {
	var buf bytes.Buffer
	op, closeFn, err := BuildOperation(Default(), &buf, testLogger())
	if err != nil {
		t.Fatalf("BuildOperation() error = %v", err)
	}
	defer func() { _ = closeFn() }()

	if err := op(context.Background(), []string{"1", "2", "3"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}
	if buf.String() != "Polling: 1, 2, 3\n" {
		t.Errorf("output = %q, want %q", buf.String(), "Polling: 1, 2, 3\n")
	}
}

func TestBuildOperation_Log(t *testing.T) {
	var logs bytes.Buffer
	cfg := Default()
	cfg.Sink.Type = SinkLog

	op, _, err := BuildOperation(cfg, io.Discard, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("BuildOperation() error = %v", err)
	}
	if err := op(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}
	if !strings.Contains(logs.String(), "items=a") {
		t.Errorf("log output = %q, want items=a", logs.String())
	}
}

func TestBuildOperation_Redis(t *testing.T) {
	cfg, err := Parse([]byte(`
sink:
  type: redis
  redis:
    addr: 127.0.0.1:1
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	op, closeFn, err := BuildOperation(cfg, io.Discard, testLogger())
	if err != nil {
		t.Fatalf("BuildOperation() error = %v", err)
	}
	defer func() { _ = closeFn() }()

	// nothing listens on port 1, so the publish fails the tick
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := op(ctx, []string{"1"}); err == nil {
		t.Error("op() expected publish error, got nil")
	}
}

func TestBuildOperation_UnknownSink(t *testing.T) {
	cfg := Default()
	cfg.Sink.Type = "kafka"

	if _, _, err := BuildOperation(cfg, io.Discard, testLogger()); err == nil {
		t.Error("BuildOperation() expected error for unknown sink, got nil")
	}
}

func TestPollerOptions(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = Duration(250 * time.Millisecond)

	clock := clockwork.NewFakeClock()
	opts := PollerOptions(cfg, clock, testLogger())

	var mu sync.Mutex
	var ticks int
	opts = append(opts, pollphase.WithTickHook(func(pollphase.Tick) {
		mu.Lock()
		ticks++
		mu.Unlock()
	}))

	p, err := pollphase.NewPhasedPoller(func(context.Context, []string) error { return nil }, opts...)
	if err != nil {
		t.Fatalf("NewPhasedPoller() error = %v", err)
	}
	accepting, err := p.Start(context.Background(), "1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("loop never slept: %v", err)
	}
	clock.Advance(250 * time.Millisecond)
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("loop never slept: %v", err)
	}

	if _, err := accepting.WithMore(); err != nil {
		t.Fatalf("WithMore() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ticks < 2 {
		t.Errorf("ticks = %d, want at least 2 after one interval", ticks)
	}
}

func TestPollerOptions_NilClockAndLogger(t *testing.T) {
	if got := len(PollerOptions(Default(), nil, nil)); got != 2 {
		t.Errorf("len(PollerOptions()) = %d, want 2", got)
	}
}

func TestBuildOperation_Webhook(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	cfg, err := Parse([]byte("sink:\n  type: webhook\n  webhook:\n    url: " + server.URL + "\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	op, closeFn, err := BuildOperation(cfg, io.Discard, testLogger())
	if err != nil {
		t.Fatalf("BuildOperation() error = %v", err)
	}
	defer func() { _ = closeFn() }()

	if err := op(context.Background(), []string{"1"}); err != nil {
		t.Fatalf("op() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("webhook hits = %d, want 1", hits.Load())
	}
}
