// Package cmd implements the resumer CLI.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fluxkit/resumer/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "resumer",
	Short: "Automatic checkpoint resume coordinator for streaming jobs",
	Long: `resumer resolves the most recent complete checkpoint a job left on
durable storage and drives job generations that resume from it.

Given a base checkpoint directory and a previous job id, resumer decides
whether a usable checkpoint exists, selects the latest complete one, and
chains submit -> checkpoint -> cancel cycles where each generation resumes
from its predecessor's externalized checkpoint.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.SetVerbose(rootVerbose)
	},
}

var (
	rootCfgFile string
	rootVerbose bool
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo injects build metadata from main.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	rootCmd.Version = version
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCfgFile, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the CLI. SIGINT/SIGTERM cancel the command context so
// long-running waits unwind cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// exitError annotates an error with the process exit code it should map to.
func exitError(code int, message string, err error) error {
	return fmt.Errorf("%s: %w (exit code %d)", message, err, code)
}
