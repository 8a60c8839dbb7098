package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/readmesync/readmesync/internal/guard"
	"github.com/readmesync/readmesync/internal/types"
)

var (
	syncCommit bool
	syncPush   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Regenerate README.md from README.py",
	Long: `Run the generator and write README.md.

Unchanged output is never committed. With --commit the target is committed
with the auto-sync marker; with --push that commit is pushed as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPush && !syncCommit {
			return fmt.Errorf("--push requires --commit")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, true)
		if err != nil {
			return err
		}
		defer a.Close()
		return runSync(ctx, a, cmd.OutOrStdout(), guard.SyncOptions{Commit: syncCommit, Push: syncPush})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncCommit, "commit", false, "Commit the regenerated target with the auto-sync marker")
	syncCmd.Flags().BoolVar(&syncPush, "push", false, "Push the auto-sync commit (requires --commit)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(ctx context.Context, a *app, w io.Writer, opts guard.SyncOptions) error {
	if status, err := a.git.GetStatus(ctx, a.repo); err != nil {
		a.log.Debug("cannot read git status", "error", err)
	} else if status.Touches(filepath.ToSlash(a.cfg.Target)) {
		a.log.Warn("overwriting uncommitted changes", "target", a.cfg.Target)
	}

	run := a.startRun(ctx, types.RunModeSync)
	res, err := a.guard.Sync(ctx, run.ID, opts)
	a.finishRun(ctx, run, res, err)
	if res != nil && res.Regenerated {
		printResult(w, a, res)
	}
	return err
}
