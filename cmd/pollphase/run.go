package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/y1hao/pollphase"
	"github.com/y1hao/pollphase/config"
	"github.com/y1hao/pollphase/internal/scenario"
	"github.com/y1hao/pollphase/internal/server"
	"github.com/y1hao/pollphase/internal/store"
)

var v1Cmd = &cobra.Command{
	Use:   "v1",
	Short: "Run the scenario against the LockedPoller",
	Long: `Run the scenario against the LockedPoller.

Items added right as the poller times out may never be polled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesign(cmd, pollphase.DesignLocked)
	},
}

var v2Cmd = &cobra.Command{
	Use:   "v2",
	Short: "Run the scenario against the PhasedPoller",
	Long: `Run the scenario against the PhasedPoller.

Every addition is a phase transition: the running loop is stopped and
joined before the next phase starts polling the merged items.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesign(cmd, pollphase.DesignPhased)
	},
}

func init() {
	rootCmd.AddCommand(v1Cmd, v2Cmd)
}

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadConfig reads the --config file, or falls back to the demo scenario,
// then applies --listen.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}

	return cfg, nil
}

func runDesign(cmd *cobra.Command, design pollphase.Design) error {
	logger := newLogger(cmd.ErrOrStderr())

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	op, closeSink, err := config.BuildOperation(cfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return fmt.Errorf("failed to build sink: %w", err)
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.Warn("failed to close sink", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []pollphase.Option
	if cfg.Listen != "" {
		ticks := store.NewTickLog(store.DefaultCapacity)
		opts = append(opts, pollphase.WithTickHook(func(t pollphase.Tick) {
			ticks.Record(store.NewTickRecord(t))
		}))

		srv := server.NewServer(ticks, cfg.Listen, nil, logger)
		srvCtx, cancelSrv := context.WithCancel(context.Background())
		if err := srv.Start(srvCtx); err != nil {
			cancelSrv()
			return fmt.Errorf("failed to start server: %w", err)
		}
		defer func() {
			cancelSrv()
			srv.Wait()
		}()
	}

	logger.Info("running scenario",
		"design", design.String(),
		"poll_interval", cfg.PollInterval.Duration().String(),
		"grace_period", cfg.GracePeriod.Duration().String(),
		"items", cfg.Items,
		"additions", len(cfg.Additions),
		"sink", cfg.Sink.Type,
	)

	if err := scenario.New(cfg, op, nil, logger, opts...).Run(ctx, design); err != nil {
		return fmt.Errorf("%s poller: %w", design, err)
	}

	logger.Info("scenario complete", "design", design.String())
	return nil
}
