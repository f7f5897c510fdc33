package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/y1hao/pollphase"
	"github.com/y1hao/pollphase/pollop"
)

func main() {
	// start mock receiver (see mock_server.go)
	go StartMockWebhook(":9999", 0)
	time.Sleep(100 * time.Millisecond)

	webhook := pollop.NewWebhook("http://localhost:9999/ticks", nil, 2*time.Second)
	defer func() { _ = webhook.Close() }()

	op := pollop.Chain(pollop.Console(os.Stdout), webhook.Operation())

	p, err := pollphase.NewPhasedPoller(op,
		pollphase.WithPollInterval(time.Second),
		pollphase.WithGracePeriod(5*time.Second),
	)
	if err != nil {
		slog.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  PhasedPoller demo")
	fmt.Println("  polls 1, 2, 3; adds 4 after 3s; adds 5 after another 3s;")
	fmt.Println("  then stops accepting items and completes after a 5s grace period")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("poller error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, p *pollphase.PhasedPoller) error {
	accepting, err := p.Start(ctx, "1", "2", "3")
	if err != nil {
		return err
	}

	for _, item := range []string{"4", "5"} {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
		if accepting, err = accepting.WithMore(item); err != nil {
			return err
		}
	}

	timingOut, err := accepting.WithTimeout()
	if err != nil {
		return err
	}
	completed, err := timingOut.WaitAndComplete(ctx)
	if err != nil {
		return err
	}

	slog.Info("poller completed", "items", completed.Items().String(), "generation", completed.Generation())
	return nil
}
