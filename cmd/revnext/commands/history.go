package commands

import (
	"time"

	"revnext-reports/internal/runlog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func statusColor(status string) text.Colors {
	switch status {
	case runlog.StatusSucceeded:
		return text.Colors{text.FgGreen}
	case runlog.StatusFailed:
		return text.Colors{text.FgRed}
	}
	return text.Colors{text.FgYellow}
}

var historyCmd = &cobra.Command{
	Use:   "history [-n <limit>]",
	Short: "Prints the most recent report runs from the run ledger.",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		entries, err := e.ledger.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		t := NewTable()
		t.AppendHeader(table.Row{"Started", "Label", "Report", "Status", "Task", "Bytes", "Took", "Output"})
		for _, entry := range entries {
			took := ""
			if !entry.FinishedAt.IsZero() {
				took = entry.FinishedAt.Sub(entry.StartedAt).Round(time.Second).String()
			}
			output := entry.OutputPath
			if entry.Error != "" {
				output = text.WrapSoft(entry.Error, 60)
			}
			t.AppendRow(table.Row{
				entry.StartedAt.Format("2006-01-02 15:04:05"),
				entry.Label,
				entry.Report,
				statusColor(entry.Status).Sprint(entry.Status),
				entry.TaskId,
				entry.Bytes,
				took,
				output,
			})
		}
		t.Render()
		return nil
	}),
}
