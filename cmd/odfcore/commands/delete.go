package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
)

// NewDeleteCommand creates the delete subcommand.
func NewDeleteCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <dataset-id...>",
		Short: "Delete datasets and their bulk data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runDelete(*configPath, args)
		},
	}

	return cmd
}

func runDelete(configPath string, args []string) error {
	a, shutdown, err := loadApp(configPath)
	if err != nil {
		return err
	}

	defer shutdown()

	var failures int

	for _, arg := range args {
		dsID, parseErr := id.Parse(arg)
		if parseErr != nil {
			return fmt.Errorf("parse dataset id %q: %w", arg, parseErr)
		}

		if delErr := a.repo.DeleteDataset(dsID); delErr != nil {
			failures++

			fmt.Printf("%s: FAILED: %v\n", dsID, delErr)

			continue
		}

		fmt.Printf("%s: deleted\n", dsID)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d datasets failed to delete", failures, len(args))
	}

	return nil
}
