package main

import (
	"context"

	"github.com/spf13/cobra"
)

func replayWALCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay-wal",
		Short: "Force a WAL replay for the configured service, draining pending writes into L2",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, logger, err := buildCache()
			if err != nil {
				return err
			}
			defer cache.Close()

			n, err := cache.ReplayWAL(context.Background())
			if err != nil {
				return err
			}
			logger.Info("twotier-bench: wal replay complete", "replayed", n)
			return nil
		},
	}
}
