package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"

	"github.com/y1hao/pollphase"
	"github.com/y1hao/pollphase/pollop"
)

// BuildOperation converts the sink configuration into a poll operation.
//
// Console output goes to out. The returned close function releases any
// connection the sink opened, and is never nil.
func BuildOperation(cfg *Config, out io.Writer, logger *slog.Logger) (pollphase.PollOperation, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Sink.Type {
	case SinkConsole, "":
		return pollop.Console(out), noop, nil

	case SinkLog:
		return pollop.Log(logger), noop, nil

	case SinkRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sink.Redis.Addr,
			Password: cfg.Sink.Redis.Password,
			DB:       cfg.Sink.Redis.DB,
		})
		op := pollop.Chain(
			pollop.RedisPublish(client, cfg.Sink.Redis.Channel),
			pollop.Log(logger),
		)
		return op, client.Close, nil

	case SinkWebhook:
		wh := pollop.NewWebhook(cfg.Sink.Webhook.URL, cfg.Sink.Webhook.Headers, cfg.Sink.Webhook.Timeout.Duration())
		return wh.Operation(), wh.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
}

// PollerOptions converts the cadence configuration into poller options.
//
// A nil clock means the real clock.
func PollerOptions(cfg *Config, clock clockwork.Clock, logger *slog.Logger) []pollphase.Option {
	opts := []pollphase.Option{
		pollphase.WithPollInterval(cfg.PollInterval.Duration()),
		pollphase.WithGracePeriod(cfg.GracePeriod.Duration()),
	}
	if clock != nil {
		opts = append(opts, pollphase.WithClock(clock))
	}
	if logger != nil {
		opts = append(opts, pollphase.WithLogger(logger))
	}
	return opts
}
