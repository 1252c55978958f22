// Command controller runs the commitment engine: a scripted demo, an
// interactive loop, or a reference producer served over gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "raist-controller"
)

// #region main
func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts appOptions

	cmd := &cobra.Command{
		Use:   "controller",
		Short: "Commitment validation and consensus engine",
		Long: `controller drives evolution cycles: each cycle retrieves related prior
commitments, asks a producer for a new one, scores it against the ideal
vector and persists it only when a quorum of validating nodes accepts it.
A failed quorum locks the engine for the rest of the process.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", envOr("RAIST_CONFIG", ""), "config file path (YAML)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.DBPath, "db", envOr("RAIST_DB", ""), "journal database path (empty = config or disabled)")
	pf.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics and /status on this address")

	cmd.AddCommand(demoCmd(&opts))
	cmd.AddCommand(runCmd(&opts))
	cmd.AddCommand(serveProducerCmd(&opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
