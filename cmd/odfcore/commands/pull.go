package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/internal/progress"
	"github.com/Sumatoshi-tech/odfcore/internal/pull"
)

// NewPullCommand creates the pull subcommand.
func NewPullCommand(configPath *string) *cobra.Command {
	var (
		recursive bool
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "pull [dataset-id...]",
		Short: "Ingest root datasets and recompute derivatives",
		RunE: func(c *cobra.Command, args []string) error {
			return runPull(c.Context(), *configPath, args, recursive, all)
		},
	}

	cmd.Flags().BoolVar(&recursive, "recursive", false, "also pull every dataset reachable by following dependencies")
	cmd.Flags().BoolVar(&all, "all", false, "pull every dataset in the workspace")

	return cmd
}

func runPull(ctx context.Context, configPath string, args []string, recursive, all bool) error {
	a, shutdown, err := loadApp(configPath)
	if err != nil {
		return err
	}

	defer shutdown()

	ids := make([]id.DatasetID, 0, len(args))

	for _, arg := range args {
		dsID, parseErr := id.Parse(arg)
		if parseErr != nil {
			return fmt.Errorf("parse dataset id %q: %w", arg, parseErr)
		}

		ids = append(ids, dsID)
	}

	listeners := progress.NewTerminalMultiListener()
	listeners.Start()

	defer listeners.Stop()

	results, err := a.pull.PullMulti(ctx, pull.Request{
		IDs:       ids,
		Recursive: recursive,
		All:       all,
	}, listeners, listeners)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	reportPullResults(results)

	return nil
}

// reportPullResults prints one line per dataset touched. A per-dataset
// failure is reported on stderr, not returned as an error: the pull
// executor never aborts a batch on one dataset's failure, and the CLI
// exits 0 for partial failures — only a usage error or a failure to
// load the workspace itself produces a nonzero exit code.
func reportPullResults(results []pull.Result) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: FAILED: %v\n", r.ID, r.Err)

			continue
		}

		fmt.Printf("%s: %s\n", r.ID, describePullKind(r.Pull.Kind))
	}
}

func describePullKind(kind metadata.PullResultKind) string {
	if kind == metadata.PullResultUpdated {
		return "updated"
	}

	return "up to date"
}
