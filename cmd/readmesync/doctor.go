package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/readmesync/readmesync/internal/config"
	"github.com/readmesync/readmesync/internal/git"
	"github.com/readmesync/readmesync/internal/storage"
	"github.com/readmesync/readmesync/internal/workflow"
)

// minGitVersion is the oldest git the guard is tested against.
const minGitVersion = "v2.0.0"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the readmesync setup of this repository",
	Long: `Run health checks to diagnose common readmesync setup issues.

This command checks for:
- git installation and version (at least 2.0.0)
- A valid .readmesync.yaml (or usable defaults)
- The generator source and its interpreter
- .pre-commit-config.yaml declaring the readme guard and configured hooks
- The GitHub workflow: push trigger, fetch depth and auto-sync guard
- Hook tools on PATH
- Run history database access

Exits non-zero when any check fails. Warnings do not change the exit code.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := runDoctor(cmd.Context(), repoPath, configPath, cmd.OutOrStdout())
		if len(report.failures) > 0 {
			return fmt.Errorf("%d doctor check(s) failed", len(report.failures))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorReport struct {
	failures []string
	warnings []string
}

func (r *doctorReport) fail(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func (r *doctorReport) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func runDoctor(ctx context.Context, dir, cfgPath string, w io.Writer) *doctorReport {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	report := &doctorReport{}
	ok := func(format string, args ...any) {
		fmt.Fprintf(w, "  %s %s\n", green("✓"), fmt.Sprintf(format, args...))
	}
	bad := func(format string, args ...any) {
		report.fail(format, args...)
		fmt.Fprintf(w, "  %s %s\n", red("✗"), fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		report.warn(format, args...)
		fmt.Fprintf(w, "  %s %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
	}

	fmt.Fprintf(w, "Running readmesync health checks...\n\n")

	// Check 1: git
	fmt.Fprintf(w, "%s Git\n", cyan("→"))
	g, err := git.NewGit(ctx)
	if err != nil {
		bad("git not available: %v", err)
		printDoctorSummary(w, report)
		return report
	}
	version, err := g.Version(ctx)
	switch {
	case err != nil:
		warn("cannot determine git version: %v", err)
	case semver.Compare(version, minGitVersion) < 0:
		bad("git %s is older than %s", version, minGitVersion)
	default:
		ok("git %s", version)
	}

	// Check 2: repository
	fmt.Fprintf(w, "%s Repository\n", cyan("→"))
	repo, err := g.RepoRoot(ctx, dir)
	if err != nil {
		bad("not inside a git repository: %v", err)
		printDoctorSummary(w, report)
		return report
	}
	ok("repository root: %s", repo)

	// Check 3: configuration
	fmt.Fprintf(w, "%s Configuration\n", cyan("→"))
	path := resolveConfigPath(repo, cfgPath)
	cfg, err := config.Load(path)
	if err != nil {
		bad("%v", err)
		cfg = config.Default()
	} else if _, statErr := os.Stat(path); statErr != nil {
		warn("%s not found, using defaults (run 'readmesync init')", config.DefaultFileName)
	} else {
		ok("%s is valid", filepath.Base(path))
	}

	// Check 4: source, target and generator
	fmt.Fprintf(w, "%s Generator\n", cyan("→"))
	if _, err := os.Stat(filepath.Join(repo, cfg.Source)); err != nil {
		bad("source %s not found", cfg.Source)
	} else {
		ok("source %s exists", cfg.Source)
	}
	if _, err := os.Stat(filepath.Join(repo, cfg.Target)); err != nil {
		warn("target %s does not exist yet", cfg.Target)
	} else if status, err := g.GetStatus(ctx, repo); err != nil {
		warn("cannot read git status: %v", err)
	} else if status.Touches(filepath.ToSlash(cfg.Target)) {
		warn("target %s has uncommitted changes", cfg.Target)
	} else {
		ok("target %s exists", cfg.Target)
	}
	if len(cfg.Generator) > 0 {
		if _, err := exec.LookPath(cfg.Generator[0]); err != nil {
			warn("generator %q not found in PATH", cfg.Generator[0])
		} else {
			ok("generator: %s", strings.Join(cfg.Generator, " "))
		}
	}

	// Check 5: pre-commit configuration
	fmt.Fprintf(w, "%s Pre-commit configuration\n", cyan("→"))
	if data, err := os.ReadFile(filepath.Join(repo, workflow.PreCommitPath)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			bad("%s not found", workflow.PreCommitPath)
		} else {
			bad("cannot read %s: %v", workflow.PreCommitPath, err)
		}
	} else if p, err := workflow.ParsePreCommit(data); err != nil {
		bad("%v", err)
	} else if problems := workflow.CheckPreCommit(p, cfg); len(problems) > 0 {
		for _, problem := range problems {
			bad("%s: %s", workflow.PreCommitPath, problem)
		}
	} else {
		ok("%s declares %d hooks", workflow.PreCommitPath, len(p.HookIDs()))
	}

	// Check 6: GitHub workflow
	fmt.Fprintf(w, "%s GitHub workflow\n", cyan("→"))
	if data, err := os.ReadFile(filepath.Join(repo, filepath.FromSlash(workflow.WorkflowPath))); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			bad("%s not found", workflow.WorkflowPath)
		} else {
			bad("cannot read %s: %v", workflow.WorkflowPath, err)
		}
	} else if wf, err := workflow.ParseWorkflow(data); err != nil {
		bad("%v", err)
	} else if problems := workflow.CheckWorkflow(wf, cfg); len(problems) > 0 {
		for _, problem := range problems {
			bad("%s: %s", workflow.WorkflowPath, problem)
		}
	} else {
		ok("%s triggers on push and skips auto-sync commits", workflow.WorkflowPath)
	}

	// Check 7: hook tools
	fmt.Fprintf(w, "%s Hook tools\n", cyan("→"))
	for _, h := range cfg.Hooks {
		if _, err := exec.LookPath(h.Run[0]); err != nil {
			warn("%s: %q not found in PATH", h.ID, h.Run[0])
		} else {
			ok("%s: %s", h.ID, strings.Join(h.Run, " "))
		}
	}

	// Check 8: run history
	fmt.Fprintf(w, "%s Run history\n", cyan("→"))
	if cfg.HistoryPath == "" {
		ok("run history disabled")
	} else {
		dbPath, err := historyFile(ctx, g, repo, cfg.HistoryPath)
		if err != nil {
			warn("cannot locate run history: %v", err)
		} else if _, err := os.Stat(dbPath); err != nil {
			ok("no run history yet (%s)", cfg.HistoryPath)
		} else if store, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath}); err != nil {
			warn("cannot open run history: %v", err)
		} else {
			runs, err := store.ListRuns(ctx, 0)
			if err != nil {
				warn("cannot query run history: %v", err)
			} else {
				ok("%d recorded run(s), keeping %d", len(runs), cfg.Retention.Keep)
			}
			store.Close()
		}
	}

	printDoctorSummary(w, report)
	return report
}

func printDoctorSummary(w io.Writer, report *doctorReport) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("─", 60))

	if len(report.failures)+len(report.warnings) == 0 {
		fmt.Fprintf(w, "%s All checks passed! readmesync is ready.\n", green("✓"))
		return
	}

	if len(report.failures) > 0 {
		fmt.Fprintf(w, "\n%s Failures (%d):\n", red("✗"), len(report.failures))
		for _, failure := range report.failures {
			fmt.Fprintf(w, "  • %s\n", failure)
		}
	}

	if len(report.warnings) > 0 {
		fmt.Fprintf(w, "\n%s Warnings (%d):\n", yellow("⚠"), len(report.warnings))
		for _, warning := range report.warnings {
			fmt.Fprintf(w, "  • %s\n", warning)
		}
	}
}
