// Package main provides the rlm-worker CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "rlm-worker",
		Short: "Sandboxed code-evaluation worker",
		Long:  `rlm-worker runs a persistent JavaScript namespace driven over stdio by a host process.`,
		RunE:  runServe,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
