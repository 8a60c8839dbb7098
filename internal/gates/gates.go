package gates

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/readmesync/readmesync/internal/config"
)

// GuardHookID names the built-in direct-edit check.
const GuardHookID = "readme-guard"

// Result represents the outcome of a single pre-commit hook
type Result struct {
	Gate     string
	Passed   bool
	Skipped  bool
	Output   string
	Error    error
	Duration time.Duration
}

// StagedChecker rejects staged changes that edit the generated file directly.
// *guard.Guard implements it.
type StagedChecker interface {
	CheckStaged(ctx context.Context) error
}

// WorkTree reports unstaged differences between the index and the work tree.
// *git.Git implements it.
type WorkTree interface {
	GetDiff(ctx context.Context, repoPath string, staged bool, paths ...string) (string, error)
}

// Runner executes the configured pre-commit hooks
type Runner struct {
	hooks       []config.Hook
	patterns    []*regexp.Regexp
	workingDir  string
	maxParallel int
	ci          bool
	guard       StagedChecker
	tree        WorkTree
	lookPath    func(string) (string, error)
}

// Config holds hook runner configuration
type Config struct {
	Hooks       []config.Hook
	WorkingDir  string        // Directory where hook commands are executed
	MaxParallel int           // Concurrency for read-only hooks (default 1)
	CI          bool          // Running under CI: honours skip_in_ci / only_in_ci
	Guard       StagedChecker // Optional: runs the built-in readme-guard hook first
	Tree        WorkTree      // Optional: fails modifying hooks that rewrite their files
}

// NewRunner creates a new hook runner
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "."
	}
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}

	patterns := make([]*regexp.Regexp, len(cfg.Hooks))
	for i, h := range cfg.Hooks {
		if len(h.Run) == 0 {
			return nil, fmt.Errorf("hook %q has an empty run command", h.ID)
		}
		if h.Files == "" {
			continue
		}
		re, err := regexp.Compile(h.Files)
		if err != nil {
			return nil, fmt.Errorf("hook %q: invalid files pattern: %w", h.ID, err)
		}
		patterns[i] = re
	}

	return &Runner{
		hooks:       cfg.Hooks,
		patterns:    patterns,
		workingDir:  cfg.WorkingDir,
		maxParallel: cfg.MaxParallel,
		ci:          cfg.CI,
		guard:       cfg.Guard,
		tree:        cfg.Tree,
		lookPath:    exec.LookPath,
	}, nil
}

// RunAll executes the readme guard and every configured hook.
//
// Hooks that modify files run one at a time in declaration order; read-only
// hooks then run concurrently, at most maxParallel at once. Every hook runs
// even after a failure so all problems are reported together. Results are
// returned in declaration order with the guard first.
func (r *Runner) RunAll(ctx context.Context, staged []string) ([]*Result, bool) {
	var results []*Result
	if r.guard != nil {
		results = append(results, r.runGuard(ctx))
	}

	hookResults := make([]*Result, len(r.hooks))
	var readOnly []int
	for i, h := range r.hooks {
		if skip := r.skipReason(i, staged); skip != "" {
			hookResults[i] = &Result{Gate: h.ID, Passed: true, Skipped: true, Output: skip}
			continue
		}
		if h.Modifies {
			hookResults[i] = r.runModifyingHook(ctx, i, staged)
			continue
		}
		readOnly = append(readOnly, i)
	}

	sem := semaphore.NewWeighted(int64(r.maxParallel))
	var wg sync.WaitGroup
	for _, i := range readOnly {
		if err := sem.Acquire(ctx, 1); err != nil {
			hookResults[i] = &Result{Gate: r.hooks[i].ID, Error: fmt.Errorf("hook not started: %w", err)}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			hookResults[i] = r.runHook(ctx, i, staged)
		}(i)
	}
	wg.Wait()

	results = append(results, hookResults...)

	allPassed := true
	for _, res := range results {
		if !res.Passed {
			allPassed = false
		}
	}
	return results, allPassed
}

// skipReason explains why hook i does not run, or returns "".
func (r *Runner) skipReason(i int, staged []string) string {
	h := r.hooks[i]
	if r.ci && h.SkipInCI {
		return "skipped in CI"
	}
	if !r.ci && h.OnlyInCI {
		return "runs only in CI"
	}
	if r.patterns[i] != nil && len(r.matching(i, staged)) == 0 {
		return "no matching files"
	}
	return ""
}

// matching returns the staged files hook i applies to.
func (r *Runner) matching(i int, staged []string) []string {
	re := r.patterns[i]
	if re == nil {
		return staged
	}
	var out []string
	for _, f := range staged {
		if re.MatchString(f) {
			out = append(out, f)
		}
	}
	return out
}

func (r *Runner) runGuard(ctx context.Context) *Result {
	start := time.Now()
	result := &Result{Gate: GuardHookID}
	if err := r.guard.CheckStaged(ctx); err != nil {
		result.Error = err
	} else {
		result.Passed = true
	}
	result.Duration = time.Since(start)
	return result
}

// runModifyingHook runs hook i and fails it when the hook changed its files
// in the work tree. The fixes are left unstaged for the user to review.
func (r *Runner) runModifyingHook(ctx context.Context, i int, staged []string) *Result {
	if r.tree == nil {
		return r.runHook(ctx, i, staged)
	}
	files := r.matching(i, staged)

	before, err := r.tree.GetDiff(ctx, r.workingDir, false, files...)
	if err != nil {
		return &Result{Gate: r.hooks[i].ID, Error: fmt.Errorf("failed to snapshot work tree: %w", err)}
	}
	result := r.runHook(ctx, i, staged)
	after, err := r.tree.GetDiff(ctx, r.workingDir, false, files...)
	if err != nil {
		result.Passed = false
		result.Error = fmt.Errorf("failed to snapshot work tree: %w", err)
		return result
	}
	if before != after {
		result.Passed = false
		if result.Error == nil {
			result.Error = fmt.Errorf("files were modified by this hook")
		}
	}
	return result
}

// runHook executes hook i
func (r *Runner) runHook(ctx context.Context, i int, staged []string) *Result {
	h := r.hooks[i]
	start := time.Now()
	result := &Result{Gate: h.ID}
	defer func() { result.Duration = time.Since(start) }()

	// Check if the tool is available
	if _, err := r.lookPath(h.Run[0]); err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", h.Run[0])
		result.Output = fmt.Sprintf("%s is not installed or not in PATH", h.Run[0])
		return result
	}

	args := append([]string{}, h.Run[1:]...)
	if h.PassFilenames {
		args = append(args, r.matching(i, staged)...)
	}

	cmd := exec.CommandContext(ctx, h.Run[0], args...)
	cmd.Dir = r.workingDir

	output, err := cmd.CombinedOutput()
	result.Output = string(output)

	if err != nil {
		result.Error = fmt.Errorf("%s failed: %w", strings.Join(h.Run, " "), err)
		return result
	}

	result.Passed = true
	return result
}

// FormatResult formats a hook result for display
func FormatResult(result *Result) string {
	status := "✓ PASSED"
	switch {
	case result.Skipped:
		status = "- SKIPPED"
	case !result.Passed:
		status = "✗ FAILED"
	}

	output := strings.TrimSpace(result.Output)
	if len(output) > 2000 {
		output = output[:2000] + "\n... (truncated)"
	}

	text := fmt.Sprintf("%s: %s\n", result.Gate, status)
	if !result.Passed && result.Error != nil {
		text += fmt.Sprintf("  Error: %v\n", result.Error)
	}
	if output != "" && (result.Skipped || !result.Passed) {
		for _, line := range strings.Split(output, "\n") {
			text += "  " + line + "\n"
		}
	}
	return text
}
