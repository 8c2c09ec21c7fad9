package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func warmupCmd() *cobra.Command {
	var keysFlag string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Pre-populate L1 and L2 for a comma-separated list of keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, logger, err := buildCache()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := cache.Start(ctx); err != nil {
				return err
			}
			defer cache.Close()

			keys := strings.Split(keysFlag, ",")
			err = cache.Warmup(ctx, keys, func(ctx context.Context, missing []string) (map[string][]byte, error) {
				out := make(map[string][]byte, len(missing))
				for _, k := range missing {
					out[k] = []byte(fmt.Sprintf("warmed:%s", k))
				}
				return out, nil
			}, ttl)
			if err != nil {
				return err
			}
			logger.Info("twotier-bench: warmup complete", "count", len(keys))
			return nil
		},
	}
	cmd.Flags().StringVar(&keysFlag, "keys", "", "comma-separated keys to warm")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Minute, "ttl for warmed entries")
	return cmd
}
