// Package main is acontext-server's entrypoint: a cobra command tree
// exposing `serve` (the HTTP API plus its background MQ consumers) and
// `migrate` (schema versioning), grounded on the teacher pack's cobra
// root/migrate command split.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/acontext-run/runtime/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "acontext-server",
	Short: "acontext runtime server",
	Long:  "acontext-server runs the session-message pipeline, task agent loop, and skill-learning pipeline behind an HTTP API.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			cfg := logging.DefaultConfig()
			cfg.Level = logging.DebugLevel
			logging.Init(cfg)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: .env in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("acontext-server %s\n", Version)
		},
	}
}

func resolveEnvFile() string {
	if envFile != "" {
		return envFile
	}
	if v := os.Getenv("ACONTEXT_ENV_FILE"); v != "" {
		return v
	}
	return ".env"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
