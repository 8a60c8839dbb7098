package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/readmesync/readmesync/internal/storage"
	"github.com/readmesync/readmesync/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent guard runs",
	Long: `Display recent check, sync and ci runs from the run history database.

Examples:
  readmesync history               # Show the last 20 runs
  readmesync history -n 5          # Show the last 5 runs
  readmesync history --events      # Include lifecycle events of each run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showEvents, _ := cmd.Flags().GetBool("events")

		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.store == nil {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s Run history is disabled\n", yellow("⚠"))
			return nil
		}
		return printHistory(ctx, a.store, cmd.OutOrStdout(), limit, showEvents)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of recent runs to show")
	historyCmd.Flags().Bool("events", false, "Show the events of each run")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(ctx context.Context, store storage.Storage, w io.Writer, limit int, showEvents bool) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "%s No runs recorded yet\n", yellow("⚠"))
		return nil
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(w, "\n%s Recent runs (%d):\n\n", cyan("→"), len(runs))

	// Newest last so the output reads top to bottom
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		fmt.Fprintf(w, "%s %s %-10s %s\n",
			runStatus(run),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Mode,
			describeRun(run))
		if run.Error != "" {
			fmt.Fprintf(w, "    %s\n", gray(run.Error))
		}
		if !showEvents {
			continue
		}
		evts, err := store.GetRunEvents(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, e := range evts {
			fmt.Fprintf(w, "    %s %-22s %s\n", gray(e.CreatedAt.Local().Format("15:04:05.000")), e.Type, e.Message)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func runStatus(run *types.Run) string {
	switch {
	case run.FinishedAt == nil:
		return color.New(color.FgYellow).Sprint("…")
	case run.Succeeded():
		return color.New(color.FgGreen).Sprint("✓")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

func describeRun(run *types.Run) string {
	desc := run.Action
	if run.Reason != "" {
		desc += ": " + run.Reason
	}
	if run.Head != "" {
		desc = shortHash(run.Head) + " " + desc
	}
	if run.CommitHash != "" {
		desc += fmt.Sprintf(" -> %s", shortHash(run.CommitHash))
		if run.Pushed {
			desc += " (pushed)"
		}
	}
	if run.FinishedAt != nil {
		desc += " " + color.New(color.FgHiBlack).Sprintf("[%s]", formatDuration(run.Duration()))
	}
	return desc
}
