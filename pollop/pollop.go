// Package pollop provides ready-made [pollphase.PollOperation] values: a
// console printer, a structured logger, a Redis publisher, an HTTP webhook,
// and a combinator that chains them.
package pollop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/y1hao/pollphase"
)

// Console returns an operation that writes one line per tick to w, e.g.
// "Polling: 1, 2, 3".
func Console(w io.Writer) pollphase.PollOperation {
	return func(_ context.Context, items []string) error {
		_, err := fmt.Fprintf(w, "Polling: %s\n", strings.Join(items, ", "))
		return err
	}
}

// Log returns an operation that logs every tick at Info level.
// If logger is nil, slog.Default() is used.
func Log(logger *slog.Logger) pollphase.PollOperation {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, items []string) error {
		logger.InfoContext(ctx, "polling",
			"items", strings.Join(items, ", "),
			"count", len(items),
		)
		return nil
	}
}

// Publisher is the subset of the go-redis client used by [RedisPublish].
// It is satisfied by *redis.Client, *redis.ClusterClient and
// redis.UniversalClient.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublish returns an operation that publishes the joined identifiers to
// a Redis pub/sub channel on every tick. A publish error fails the tick.
func RedisPublish(pub Publisher, channel string) pollphase.PollOperation {
	return func(ctx context.Context, items []string) error {
		if err := pub.Publish(ctx, channel, strings.Join(items, ",")).Err(); err != nil {
			return fmt.Errorf("publish to %q: %w", channel, err)
		}
		return nil
	}
}

// Chain returns an operation that runs each op in order, stopping at the
// first error. Nil operations are skipped.
func Chain(ops ...pollphase.PollOperation) pollphase.PollOperation {
	return func(ctx context.Context, items []string) error {
		for _, op := range ops {
			if op == nil {
				continue
			}
			if err := op(ctx, items); err != nil {
				return err
			}
		}
		return nil
	}
}
