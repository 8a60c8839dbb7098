package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/readmesync/readmesync/internal/config"
	"github.com/readmesync/readmesync/internal/gates"
	"github.com/readmesync/readmesync/internal/ghactions"
	"github.com/readmesync/readmesync/internal/guard"
)

var (
	preCommitHook  string
	preCommitDrift bool
	hookForce      bool
)

var preCommitCmd = &cobra.Command{
	Use:   "pre-commit",
	Short: "Run the pre-commit checks on staged files",
	Long: `Run the readme guard and every configured hook against the staged files.

The readme guard rejects a commit that stages README.md without README.py.
Hooks that modify files (ruff --fix) run first, one at a time; read-only hooks
(ruff format --check, pyright) then run in parallel. Every hook runs even when
an earlier one fails.

Use --hook to run a single hook by id, as the generated
.pre-commit-config.yaml does.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return runPreCommit(ctx, a, cmd.OutOrStdout(), preCommitHook, preCommitDrift)
	},
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install a git pre-commit hook that runs readmesync pre-commit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := installHook(ctx, a, hookForce)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Installed pre-commit hook: %s\n", green("✓"), path)
		return nil
	},
}

func init() {
	preCommitCmd.Flags().StringVar(&preCommitHook, "hook", "", "Run only the hook with this id")
	preCommitCmd.Flags().BoolVar(&preCommitDrift, "drift", false, "Also fail the readme guard when the target is out of date")
	hookInstallCmd.Flags().BoolVar(&hookForce, "force", false, "Overwrite an existing pre-commit hook")

	hookCmd.AddCommand(hookInstallCmd)
	rootCmd.AddCommand(preCommitCmd)
	rootCmd.AddCommand(hookCmd)
}

// stagedGuard is the readme guard hook: the direct-edit rule over the
// staged files, optionally followed by a drift check.
type stagedGuard struct {
	guard *guard.Guard
	cfg   *config.Config
	drift bool
}

func (s *stagedGuard) CheckStaged(ctx context.Context) error {
	if err := s.guard.CheckStaged(ctx); err != nil {
		return err
	}
	if !s.drift {
		return nil
	}
	stale, err := s.guard.Drift(ctx)
	if err != nil {
		return err
	}
	if stale {
		return fmt.Errorf("%s is out of date; run `readmesync sync` and stage it", s.cfg.Target)
	}
	return nil
}

func runPreCommit(ctx context.Context, a *app, w io.Writer, only string, drift bool) error {
	// Hooks only see files that exist; the guard reads deletions itself.
	staged, err := a.git.StagedExisting(ctx, a.repo)
	if err != nil {
		return err
	}

	var hooks []config.Hook
	var checker gates.StagedChecker
	switch only {
	case "":
		hooks = a.cfg.Hooks
		checker = &stagedGuard{guard: a.guard, cfg: a.cfg, drift: drift}
	case gates.GuardHookID:
		checker = &stagedGuard{guard: a.guard, cfg: a.cfg, drift: drift}
	default:
		for _, h := range a.cfg.Hooks {
			if h.ID == only {
				hooks = append(hooks, h)
			}
		}
		if len(hooks) == 0 {
			return fmt.Errorf("unknown hook %q", only)
		}
	}

	runner, err := gates.NewRunner(&gates.Config{
		Hooks:       hooks,
		WorkingDir:  a.repo,
		MaxParallel: a.cfg.MaxParallel,
		CI:          ghactions.IsCI(),
		Guard:       checker,
		Tree:        a.git,
	})
	if err != nil {
		return err
	}

	a.log.Debug("running pre-commit hooks", "staged", len(staged), "hooks", len(hooks))
	results, allPassed := runner.RunAll(ctx, staged)

	failed := 0
	for _, r := range results {
		fmt.Fprint(w, gates.FormatResult(r))
		if !r.Passed {
			failed++
		}
	}
	if !allPassed {
		return fmt.Errorf("%d of %d pre-commit checks failed", failed, len(results))
	}
	return nil
}

const hookMarker = "# installed by readmesync"

func hookScript() []byte {
	return []byte("#!/bin/sh\n" + hookMarker + "\nexec readmesync pre-commit\n")
}

// installHook writes the pre-commit hook. A hook not written by readmesync
// is only replaced when force is set.
func installHook(ctx context.Context, a *app, force bool) (string, error) {
	dir, err := a.git.HooksDir(ctx, a.repo)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "pre-commit")

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !force && !bytes.Contains(existing, []byte(hookMarker)) {
			return "", fmt.Errorf("%s already exists and was not installed by readmesync (use --force to overwrite)", path)
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create hooks directory: %w", err)
	}
	if err := os.WriteFile(path, hookScript(), 0755); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0755); err != nil {
		return "", fmt.Errorf("failed to make %s executable: %w", path, err)
	}
	return path, nil
}
