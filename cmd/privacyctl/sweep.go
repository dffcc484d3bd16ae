package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dsrengine/internal/app"
	"dsrengine/internal/platform/config"
	"dsrengine/internal/platform/logger"
)

func newSweepCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep and exit",
		Long:  "Builds the engine from the environment, applies retention to every category once and prints what changed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			return runSweep(cmd, cfg, logger.New(logLevel))
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level")
	return cmd
}

func runSweep(cmd *cobra.Command, cfg config.Config, log *slog.Logger) (err error) {
	ctx := cmd.Context()
	engine, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := engine.Shutdown(ctx); err == nil {
			err = shutdownErr
		}
	}()

	res, sweepErr := engine.Sweeper.RunOnce(ctx)
	out := cmd.OutOrStdout()
	for _, c := range res.Categories {
		fmt.Fprintf(out, "%-20s %-10s %d\n", c.Category, c.Action, c.Affected)
	}
	fmt.Fprintf(out, "%d records affected, %d expired exports purged in %s\n", res.Affected(), res.ExportsPurged, res.Duration)
	return sweepErr
}
