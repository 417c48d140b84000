package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

// NewListCommand creates the list subcommand.
func NewListCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets in the workspace",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runList(*configPath)
		},
	}

	return cmd
}

func runList(configPath string) error {
	a, shutdown, err := loadApp(configPath)
	if err != nil {
		return err
	}

	defer shutdown()

	ids, err := a.repo.ListDatasets()
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"ID", "Kind", "Records", "Size", "Last Pulled"})

	for _, dsID := range ids {
		summary, summaryErr := a.repo.GetSummary(dsID)
		if summaryErr != nil {
			return fmt.Errorf("summary for %s: %w", dsID, summaryErr)
		}

		tbl.AppendRow(table.Row{
			summary.ID,
			summary.Kind,
			summary.NumRecords,
			humanize.Bytes(uint64(summary.DataSize)), //nolint:gosec // DataSize is never negative
			formatLastPulled(summary),
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("Total: %d datasets", len(ids))})

	tbl.Render()

	return nil
}

func formatLastPulled(summary metadata.Summary) string {
	if summary.LastPulled == nil {
		return "never"
	}

	return humanize.Time(*summary.LastPulled)
}
