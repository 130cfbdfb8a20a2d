package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fluxkit/resumer/internal/config"
	"github.com/fluxkit/resumer/internal/observability"
	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/recovery"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Compute the resume decision for a previous job id",
	Long: `Resolve the checkpoint root for a previous job id, locate its latest
complete checkpoint, and print the resume pointer the next generation
should be submitted with. A null pointer means start fresh.

Example:
  resumer resolve --base /data/checkpoints --previous-job 7f3a...
  resumer resolve --base s3://bucket/ckpts --previous-job 7f3a... --layout flat`,
	RunE: runResolve,
}

var (
	resolveBase        string
	resolvePreviousJob string
	resolveLayout      string
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveBase, "base", "", "Base checkpoint directory (path, file:// or s3:// URI)")
	resolveCmd.Flags().StringVar(&resolvePreviousJob, "previous-job", "", "Previous generation's job id")
	resolveCmd.Flags().StringVar(&resolveLayout, "layout", "", "Layout mode (per-job|flat); overrides config")

	_ = resolveCmd.MarkFlagRequired("previous-job")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settings, err := config.Load(rootCfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	base := resolveBase
	if base == "" {
		base = settings.Checkpoints.Base
	}
	if base == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing base directory",
			fmt.Errorf("set --base or checkpoints.base"))
	}

	layout := settings.Layout()
	if resolveLayout != "" {
		layout, err = checkpoint.ParseLayoutMode(resolveLayout)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --layout value", err)
		}
	}

	view, viewBase, err := buildView(ctx, base)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open checkpoint storage", err)
	}
	defer func() { _ = view.Close() }()

	locator := checkpoint.NewLocator(view, nil, observability.CLILogger)
	decider := recovery.NewDecider(view, locator, viewBase, layout, observability.CLILogger)

	pointer, err := decider.Decide(ctx, resolvePreviousJob)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Recovery decision failed", err)
	}

	observability.CLILogger.Debug("resume decision computed",
		zap.String("previous_job_id", resolvePreviousJob),
		zap.Bool("resume", pointer != nil))

	out, err := json.MarshalIndent(map[string]any{"resume": pointer}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
