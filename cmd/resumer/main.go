package main

import (
	"os"

	"github.com/fluxkit/resumer/internal/cmd"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
