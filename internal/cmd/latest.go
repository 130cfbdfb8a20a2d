package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/fluxkit/resumer/internal/config"
	"github.com/fluxkit/resumer/internal/observability"
	"github.com/fluxkit/resumer/pkg/checkpoint"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Find the latest complete checkpoint under a root",
	Long: `Scan a checkpoint root and print the complete checkpoint with the
greatest sequence number. Prints null when no complete checkpoint exists;
absence is a normal state, not an error.

Example:
  resumer latest --base /data/checkpoints --job 7f3a...
  resumer latest --base /data/checkpoints --layout flat`,
	RunE: runLatest,
}

var (
	latestBase   string
	latestJob    string
	latestLayout string
)

func init() {
	rootCmd.AddCommand(latestCmd)

	latestCmd.Flags().StringVar(&latestBase, "base", "", "Base checkpoint directory (path, file:// or s3:// URI)")
	latestCmd.Flags().StringVar(&latestJob, "job", "", "Job id (required in per-job layout)")
	latestCmd.Flags().StringVar(&latestLayout, "layout", "", "Layout mode (per-job|flat); overrides config")
}

func runLatest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settings, err := config.Load(rootCfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	base := latestBase
	if base == "" {
		base = settings.Checkpoints.Base
	}
	if base == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing base directory",
			fmt.Errorf("set --base or checkpoints.base"))
	}

	layout := settings.Layout()
	if latestLayout != "" {
		layout, err = checkpoint.ParseLayoutMode(latestLayout)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --layout value", err)
		}
	}

	view, viewBase, err := buildView(ctx, base)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open checkpoint storage", err)
	}
	defer func() { _ = view.Close() }()

	root, err := checkpoint.ResolveRoot(view, viewBase, latestJob, layout)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot resolve checkpoint root", err)
	}

	locator := checkpoint.NewLocator(view, nil, observability.CLILogger)
	handle, err := locator.FindLatestComplete(ctx, root)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Checkpoint scan failed", err)
	}

	out, err := json.MarshalIndent(map[string]any{"root": root, "checkpoint": handle}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
