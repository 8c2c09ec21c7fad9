// cmd/twotier-bench is the CLI entry-point for exercising a twotier Cache
// outside of a host application — serve it over HTTP, pre-warm it, run a
// synthetic load, or force a WAL replay. Built with Cobra, mirroring the
// teacher's cmd/client shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	serviceName string
)

func main() {
	root := &cobra.Command{
		Use:   "twotier-bench",
		Short: "CLI for exercising a twotier two-tier cache service",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "twotier.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVarP(&serviceName, "service", "s", "default", "service name within the config file")

	root.AddCommand(serveCmd(), warmupCmd(), benchCmd(), replayWALCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
