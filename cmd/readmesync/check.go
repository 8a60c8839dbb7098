package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/readmesync/readmesync/internal/guard"
	"github.com/readmesync/readmesync/internal/types"
)

var checkDrift bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the last commit for direct edits of README.md",
	Long: `Inspect HEAD and report what CI would do with it, without side effects.

Fails when README.md changed in the last commit while README.py did not.
With --drift, also fails when README.md on disk differs from what README.py
renders.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, true)
		if err != nil {
			return err
		}
		defer a.Close()
		return runCheck(ctx, a, cmd.OutOrStdout(), checkDrift)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkDrift, "drift", false, "Also fail when the target is out of date")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, a *app, w io.Writer, drift bool) error {
	run := a.startRun(ctx, types.RunModeCheck)
	res, err := a.guard.Check(ctx, run.ID)
	if err == nil && drift {
		err = checkTargetDrift(ctx, a, w)
	}
	a.finishRun(ctx, run, res, err)
	if res != nil {
		printResult(w, a, res)
	}
	return err
}

func checkTargetDrift(ctx context.Context, a *app, w io.Writer) error {
	stale, err := a.guard.Drift(ctx)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", a.cfg.Target, err)
	}
	if stale {
		return fmt.Errorf("%s is out of date; run `readmesync sync` to regenerate it from %s", a.cfg.Target, a.cfg.Source)
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(w, "%s %s matches %s\n", green("✓"), a.cfg.Target, a.gen.Command())
	return nil
}

// printResult reports a guard result with the doctor-style check marks.
func printResult(w io.Writer, a *app, res *guard.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if res.Head != "" {
		fmt.Fprintf(w, "%s HEAD %s (%d files changed)\n", cyan("→"), shortHash(res.Head), len(res.Changes.Files))
	}

	switch res.Decision.Action {
	case guard.ActionFail:
		fmt.Fprintf(w, "%s %s\n", red("✗"), res.Decision.Reason)
		return
	case guard.ActionSkip:
		fmt.Fprintf(w, "%s nothing to do: %s\n", green("✓"), res.Decision.Reason)
		return
	}

	if !res.Regenerated {
		fmt.Fprintf(w, "%s %s: %s needs regenerating\n", yellow("⚠"), res.Decision.Reason, a.cfg.Target)
		return
	}
	if !res.Changed {
		fmt.Fprintf(w, "%s %s already up to date\n", green("✓"), a.cfg.Target)
		return
	}
	fmt.Fprintf(w, "%s regenerated %s\n", green("✓"), a.cfg.Target)
	if res.Commit != "" {
		fmt.Fprintf(w, "%s committed %s %q\n", green("✓"), shortHash(res.Commit), a.cfg.Marker)
	}
	if res.Pushed {
		fmt.Fprintf(w, "%s pushed to %s\n", green("✓"), a.cfg.Remote)
	}
}
