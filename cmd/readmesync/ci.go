package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/readmesync/readmesync/internal/ghactions"
	"github.com/readmesync/readmesync/internal/guard"
	"github.com/readmesync/readmesync/internal/types"
)

var ciNoPush bool

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Run the README guard for a push event",
	Long: `Run the CI flow for the commit at HEAD:

  - commits whose message contains the auto-sync marker are skipped
  - a direct edit of README.md fails the run
  - a change to README.py regenerates README.md, commits it with the marker
    and pushes the commit

Step outputs (action, reason, readme_changed, commit, pushed) are written to
$GITHUB_OUTPUT when it is set. Under GitHub Actions failures are annotated on
README.md and an auto-sync commit is reported as a notice.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, true)
		if err != nil {
			return err
		}
		defer a.Close()
		return runCI(ctx, a, cmd.OutOrStdout(), guard.SyncOptions{Commit: true, Push: !ciNoPush})
	},
}

func init() {
	ciCmd.Flags().BoolVar(&ciNoPush, "no-push", false, "Commit but do not push")
	rootCmd.AddCommand(ciCmd)
}

func runCI(ctx context.Context, a *app, w io.Writer, opts guard.SyncOptions) error {
	run := a.startRun(ctx, types.RunModeCI)
	res, err := a.guard.Run(ctx, run.ID, opts)
	a.finishRun(ctx, run, res, err)

	if res != nil {
		printResult(w, a, res)
	}
	if outErr := ghactions.SetOutputs(ciOutputs(res, err)); outErr != nil {
		a.log.Warn("failed to write step outputs", "error", outErr)
	}
	if ghactions.IsActions() {
		switch {
		case err != nil:
			ghactions.Error(w, a.cfg.Target, err.Error())
		case res != nil && res.Commit != "":
			ghactions.Notice(w, fmt.Sprintf("%s regenerated in %s", a.cfg.Target, shortHash(res.Commit)))
		}
	}
	return err
}

// ciOutputs are the step outputs of a ci run.
func ciOutputs(res *guard.Result, err error) map[string]string {
	out := map[string]string{
		"action":         "",
		"reason":         "",
		"readme_changed": "false",
		"commit":         "",
		"pushed":         "false",
	}
	if res != nil {
		out["action"] = string(res.Decision.Action)
		out["reason"] = res.Decision.Reason
		out["readme_changed"] = strconv.FormatBool(res.Changed)
		out["commit"] = res.Commit
		out["pushed"] = strconv.FormatBool(res.Pushed)
	}
	if err != nil && out["action"] == "" {
		out["action"] = string(guard.ActionFail)
		out["reason"] = err.Error()
	}
	return out
}
