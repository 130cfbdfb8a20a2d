package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/fluxkit/resumer/internal/config"
	"github.com/fluxkit/resumer/internal/observability"
	"github.com/fluxkit/resumer/internal/server"
	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/jobrun"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status API",
	Long: `Serve job generation records and checkpoint discovery over HTTP.

Example:
  resumer serve --config resumer.yaml
  RESUMER_SERVER_PORT=9090 resumer serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settings, err := config.Load(rootCfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if settings.Checkpoints.Base == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing base directory",
			fmt.Errorf("set checkpoints.base"))
	}

	view, viewBase, err := buildView(ctx, settings.Checkpoints.Base)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open checkpoint storage", err)
	}
	defer func() { _ = view.Close() }()

	var registry *jobrun.Registry
	if settings.Registry.Dir != "" {
		registry = jobrun.NewRegistry(settings.Registry.Dir)
	}

	srv := server.New(settings.Server.Host, settings.Server.Port, server.Deps{
		Registry: registry,
		Locator:  checkpoint.NewLocator(view, nil, observability.CLILogger),
		View:     view,
		Base:     viewBase,
		Layout:   settings.Layout(),
		Version:  versionInfo.Version,
	}, observability.CLILogger)

	if err := srv.ListenAndServe(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Status server failed", err)
	}
	return nil
}
