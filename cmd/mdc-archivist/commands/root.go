// Package commands implements CLI commands for mdc-archivist.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	rootCmd = &cobra.Command{
		Use:   "mdc-archivist",
		Short: "Operate and inspect a market data collector's durable pipeline",
		Long: `mdc-archivist operates and inspects a market data collector's
write-ahead log and sink output: verifying integrity, replaying committed
events, recovering from a crash, packaging a portable archive, and serving
Prometheus metrics.`,
	}
)

// Execute runs the CLI.
func Execute(v string) error {
	version = v

	rootCmd.AddCommand(
		versionCmd(),
		verifyCmd(),
		replayCmd(),
		recoverCmd(),
		packageCmd(),
		packageVerifyCmd(),
		statsCmd(),
		serveCmd(),
	)

	return rootCmd.Execute()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mdc-archivist version %s\n", version)
		},
	}
}
