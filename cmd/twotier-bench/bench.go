package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

func benchCmd() *cobra.Command {
	var ops, concurrency int
	var valueSize int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic mixed read/write load against the configured cache",
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

			value := make([]byte, valueSize)
			start := time.Now()

			var wg sync.WaitGroup
			perWorker := ops / concurrency
			var errCount int
			var mu sync.Mutex

			for w := 0; w < concurrency; w++ {
				w := w
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						key := fmt.Sprintf("bench:%d:%d", w, i%100)
						if i%5 == 0 {
							if err := cache.Set(ctx, key, value, time.Minute); err != nil {
								mu.Lock()
								errCount++
								mu.Unlock()
							}
							continue
						}
						if _, _, err := cache.Get(ctx, key); err != nil {
							mu.Lock()
							errCount++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			elapsed := time.Since(start)
			logger.Info("twotier-bench: run complete",
				"ops", ops, "concurrency", concurrency, "errors", errCount,
				"elapsed", elapsed.String(), "ops_per_sec", fmt.Sprintf("%.0f", float64(ops)/elapsed.Seconds()))
			return nil
		},
	}
	cmd.Flags().IntVar(&ops, "ops", 10000, "total operations to run")
	cmd.Flags().IntVar(&concurrency, "concurrency", 16, "concurrent workers")
	cmd.Flags().IntVar(&valueSize, "value-size", 256, "bytes per value written")
	return cmd
}
