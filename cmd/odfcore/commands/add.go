package commands

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/pkg/manifest"
)

// NewAddCommand creates the add subcommand.
func NewAddCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <snapshot-file...>",
		Short: "Add datasets from DatasetSnapshot manifest files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAdd(*configPath, args)
		},
	}

	return cmd
}

func runAdd(configPath string, paths []string) error {
	a, shutdown, err := loadApp(configPath)
	if err != nil {
		return err
	}

	defer shutdown()

	snapshots := make([]metadata.DatasetSnapshot, 0, len(paths))

	for _, path := range paths {
		var snapshot metadata.DatasetSnapshot
		if loadErr := manifest.Load(afero.NewOsFs(), path, manifest.KindDatasetSnapshot, &snapshot); loadErr != nil {
			return fmt.Errorf("load %s: %w", path, loadErr)
		}

		if validateErr := metadata.ValidateSnapshot(snapshot); validateErr != nil {
			return fmt.Errorf("%s: %w", path, validateErr)
		}

		snapshots = append(snapshots, snapshot)
	}

	results := a.repo.AddDatasets(snapshots)

	var failures int

	for _, r := range results {
		if r.Err != nil {
			failures++

			fmt.Printf("%s: FAILED: %v\n", r.ID, r.Err)

			continue
		}

		fmt.Printf("%s: added\n", r.ID)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d datasets failed to add", failures, len(results))
	}

	return nil
}
