// Package main is the entry point for the bernard CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "bernard",
		Short:         "Long-term semantic memory and context compression for a conversational agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log_level (debug, info, warn, error)")

	root.AddCommand(
		versionCmd(),
		configCmd(flags),
		memoryCmd(flags),
		compressCmd(flags),
		recallCmd(flags),
		pendingCmd(flags),
		workerCmd(flags),
		serveCmd(flags),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bernard %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
