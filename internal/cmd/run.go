package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fluxkit/resumer/internal/config"
	"github.com/fluxkit/resumer/internal/observability"
	"github.com/fluxkit/resumer/pkg/checkpoint"
	"github.com/fluxkit/resumer/pkg/fsview/local"
	"github.com/fluxkit/resumer/pkg/hapointer"
	"github.com/fluxkit/resumer/pkg/jobrun"
	"github.com/fluxkit/resumer/pkg/lifecycle"
	"github.com/fluxkit/resumer/pkg/plan"
	"github.com/fluxkit/resumer/pkg/recovery"
	"github.com/fluxkit/resumer/pkg/snapshot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a chained resume plan",
	Long: `Run a plan of chained job generations against the in-process job
runtime: each generation resumes from its predecessor's externalized
checkpoint, waits for a fresh checkpoint, records it, and is cancelled
before the next generation starts.

Example:
  resumer run --plan plan.yaml
  resumer run --plan plan.yaml --verbose`,
	RunE: runRun,
}

var runPlanPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runPlanPath, "plan", "p", "", "Path to run plan (required)")

	_ = runCmd.MarkFlagRequired("plan")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := observability.CLILogger

	p, err := plan.Load(runPlanPath)
	if err != nil {
		log.Error("Failed to load plan", zap.String("path", runPlanPath), zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid plan", err)
	}
	if strings.Contains(p.Checkpoints.Base, "://") {
		return exitError(foundry.ExitInvalidArgument, "Invalid plan",
			fmt.Errorf("the in-process runtime writes checkpoints locally; checkpoints.base must be a plain path"))
	}

	settings, err := config.Load(rootCfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	log.Info("Loaded plan",
		zap.String("path", runPlanPath),
		zap.String("name", p.Name),
		zap.Int("generations", p.Generations),
		zap.String("layout", p.Checkpoints.Layout),
		zap.String("mode", p.Checkpoints.Mode))

	view := local.New()
	backend := snapshot.NewFS(p.SnapshotMode())

	var registry *jobrun.Registry
	if settings.Registry.Dir != "" {
		registry = jobrun.NewRegistry(settings.Registry.Dir)
	}

	cluster, err := jobrun.NewCluster(jobrun.Config{
		BaseDir:   p.Checkpoints.Base,
		Layout:    p.Layout(),
		Retention: p.Retention(),
	}, backend, registry, log)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid cluster configuration", err)
	}
	defer func() { _ = cluster.Close() }()

	pointers, err := buildPointerStore(p.HA.Endpoint, settings)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Cannot reach HA pointer store", err)
	}
	defer func() { _ = pointers.Close() }()

	locator := checkpoint.NewLocator(view, nil, log)
	decider := recovery.NewDecider(view, locator, p.Checkpoints.Base, p.Layout(), log)
	controller := lifecycle.NewController(cluster, view, locator, decider, pointers, lifecycle.Config{
		Base:         p.Checkpoints.Base,
		Layout:       p.Layout(),
		PollInterval: p.PollInterval.Std(),
	}, log)

	seed := p.SeedJobID
	if seed == "" {
		// Synthetic predecessor with an empty directory: the first
		// generation exercises the graceful start-fresh path.
		seed = uuid.New().String()
		if p.Layout() == checkpoint.PerJobSubdirectory {
			if err := os.MkdirAll(filepath.Join(p.Checkpoints.Base, seed), 0755); err != nil {
				return exitError(foundry.ExitFileWriteError, "Cannot create seed directory", err)
			}
		}
	}

	spec := jobrun.Spec{
		Name:               p.Name,
		Parallelism:        p.Parallelism,
		CheckpointInterval: p.CheckpointInterval.Std(),
		EmitRate:           p.EmitRate,
	}

	generations, err := controller.Chain(ctx, spec, seed, p.Generations)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Chained run failed", err)
	}

	out, err := json.MarshalIndent(map[string]any{
		"seed_job_id": seed,
		"generations": generations,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// buildPointerStore selects the HA-backed store when an endpoint is
// configured and falls back to the in-process standalone store otherwise.
func buildPointerStore(planEndpoint string, settings *config.Settings) (hapointer.Store, error) {
	endpoint := planEndpoint
	if endpoint == "" {
		endpoint = settings.HA.Endpoint
	}
	if endpoint == "" {
		return hapointer.NewStandalone(), nil
	}
	return hapointer.NewRedisStore(endpoint)
}
