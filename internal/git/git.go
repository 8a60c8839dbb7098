package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotRepository is returned when a path is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Git implements Operations using the git CLI.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string
}

// NewGit creates a new Git instance.
// It verifies that git is available on the system.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	// Verify git works
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath}, nil
}

// run executes git in repoPath and returns stdout. Stderr is folded into the
// returned error so callers see why git failed.
func (g *Git) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.gitPath, append([]string{"-C", repoPath}, args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not a git repository") {
			return "", fmt.Errorf("%s: %w", repoPath, ErrNotRepository)
		}
		if msg != "" {
			return "", fmt.Errorf("git %s failed in %s: %w: %s", args[0], repoPath, err, msg)
		}
		return "", fmt.Errorf("git %s failed in %s: %w", args[0], repoPath, err)
	}
	return stdout.String(), nil
}

// RepoRoot returns the top-level directory of the work tree containing path.
func (g *Git) RepoRoot(ctx context.Context, path string) (string, error) {
	out, err := g.run(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GetStatus returns the git status of the repository.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) GetStatus(ctx context.Context, repoPath string) (*Status, error) {
	// -z keeps non-ASCII paths unquoted
	output, err := g.run(ctx, repoPath, "status", "--porcelain", "-z")
	if err != nil {
		return nil, err
	}
	return parseStatus(output), nil
}

// parseStatus parses `git status --porcelain -z` output. Entries are
// NUL-terminated "XY path"; renames and copies are followed by an extra entry
// holding the original path.
func parseStatus(output string) *Status {
	status := &Status{
		Modified:  []string{},
		Untracked: []string{},
		Deleted:   []string{},
		Added:     []string{},
		Renamed:   []string{},
	}

	entries := strings.Split(output, "\x00")
	for i := 0; i < len(entries); i++ {
		entry := entries[i]
		if len(entry) < 4 {
			continue
		}

		statusCode := entry[0:2]
		filePath := entry[3:]

		// Parse status codes: XY where X=index, Y=working tree
		// Reference: https://git-scm.com/docs/git-status#_short_format
		switch {
		case statusCode == "??":
			status.Untracked = append(status.Untracked, filePath)
		case statusCode[0] == 'A':
			status.Added = append(status.Added, filePath)
		case statusCode[0] == 'D' || statusCode[1] == 'D':
			status.Deleted = append(status.Deleted, filePath)
		case statusCode[0] == 'R':
			status.Renamed = append(status.Renamed, filePath)
			i++
		case statusCode[0] == 'C':
			status.Modified = append(status.Modified, filePath)
			i++
		default:
			// Modified, type changed, unmerged
			status.Modified = append(status.Modified, filePath)
		}

		status.HasChanges = true
	}

	return status
}

// HasParent reports whether rev has at least one parent commit.
func (g *Git) HasParent(ctx context.Context, repoPath, rev string) (bool, error) {
	out, err := g.run(ctx, repoPath, "rev-list", "--parents", "-n", "1", rev)
	if err != nil {
		return false, err
	}
	return len(strings.Fields(out)) > 1, nil
}

// ChangedFiles lists paths that differ between base and head.
// An empty base lists the files introduced by head itself, which is what a
// root commit needs.
func (g *Git) ChangedFiles(ctx context.Context, repoPath, base, head string) ([]string, error) {
	var out string
	var err error
	if base == "" {
		out, err = g.run(ctx, repoPath, "diff-tree", "--root", "--no-commit-id", "--name-only", "-z", "-r", head)
	} else {
		out, err = g.run(ctx, repoPath, "diff", "--name-only", "-z", base, head)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files: %w", err)
	}
	return splitNUL(out), nil
}

// StagedFiles lists paths staged for the next commit, deletions included.
func (g *Git) StagedFiles(ctx context.Context, repoPath string) ([]string, error) {
	return g.staged(ctx, repoPath, "ACMRD")
}

// StagedExisting lists staged paths that exist in the next commit. Deleted
// paths are left out so they are never handed to hook commands.
func (g *Git) StagedExisting(ctx context.Context, repoPath string) ([]string, error) {
	return g.staged(ctx, repoPath, "ACMR")
}

func (g *Git) staged(ctx context.Context, repoPath, filter string) ([]string, error) {
	out, err := g.run(ctx, repoPath, "diff", "--cached", "--name-only", "-z", "--diff-filter="+filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged files: %w", err)
	}
	return splitNUL(out), nil
}

// CommitMessage returns the full message of rev.
func (g *Git) CommitMessage(ctx context.Context, repoPath, rev string) (string, error) {
	out, err := g.run(ctx, repoPath, "log", "-1", "--format=%B", rev)
	if err != nil {
		return "", fmt.Errorf("failed to read commit message of %s: %w", rev, err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// RevParse resolves rev to a full commit hash.
func (g *Git) RevParse(ctx context.Context, repoPath, rev string) (string, error) {
	out, err := g.run(ctx, repoPath, "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return strings.TrimSpace(out), nil
}

// HooksDir returns the absolute path of the repository's hooks directory,
// honouring core.hooksPath.
func (g *Git) HooksDir(ctx context.Context, repoPath string) (string, error) {
	dir, err := g.GitPath(ctx, repoPath, "hooks")
	if err != nil {
		return "", fmt.Errorf("failed to locate hooks directory: %w", err)
	}
	return dir, nil
}

// GitPath resolves rel inside the repository's git directory and returns an
// absolute path. Files there are never part of the work tree.
func (g *Git) GitPath(ctx context.Context, repoPath, rel string) (string, error) {
	out, err := g.run(ctx, repoPath, "rev-parse", "--git-path", rel)
	if err != nil {
		return "", err
	}
	p := strings.TrimSpace(out)
	if !filepath.IsAbs(p) {
		p = filepath.Join(repoPath, p)
	}
	return filepath.Abs(p)
}

// CurrentBranch returns the checked out branch, or an error on a detached HEAD.
func (g *Git) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	out, err := g.run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", fmt.Errorf("HEAD is detached in %s", repoPath)
	}
	return branch, nil
}

// CommitChanges creates a git commit.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) CommitChanges(ctx context.Context, repoPath string, opts CommitOptions) (string, error) {
	if strings.TrimSpace(opts.Message) == "" {
		return "", fmt.Errorf("commit message is required")
	}

	if len(opts.Paths) > 0 {
		if _, err := g.run(ctx, repoPath, append([]string{"add", "--"}, opts.Paths...)...); err != nil {
			return "", err
		}
	}

	args := []string{"commit", "-m", opts.Message}
	if opts.Author != "" {
		args = append(args, "--author", opts.Author)
	}
	if len(opts.Paths) > 0 {
		// Commit only these paths even if other files are staged
		args = append(args, "--only", "--")
		args = append(args, opts.Paths...)
	}

	if _, err := g.runWithIdentity(ctx, repoPath, opts, args...); err != nil {
		return "", err
	}

	return g.RevParse(ctx, repoPath, "HEAD")
}

// runWithIdentity runs git with the committer identity from opts, overriding
// any configured user.name and user.email for this command only.
func (g *Git) runWithIdentity(ctx context.Context, repoPath string, opts CommitOptions, args ...string) (string, error) {
	if opts.CommitterName == "" || opts.CommitterEmail == "" {
		return g.run(ctx, repoPath, args...)
	}
	identity := []string{
		"-c", "user.name=" + opts.CommitterName,
		"-c", "user.email=" + opts.CommitterEmail,
	}
	return g.run(ctx, repoPath, append(identity, args...)...)
}

// Push pushes HEAD to branch on remote. An empty branch pushes the current branch.
func (g *Git) Push(ctx context.Context, repoPath string, opts PushOptions) error {
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	branch := opts.Branch
	if branch == "" {
		var err error
		branch, err = g.CurrentBranch(ctx, repoPath)
		if err != nil {
			return fmt.Errorf("cannot determine branch to push: %w", err)
		}
	}
	if _, err := g.run(ctx, repoPath, "push", remote, "HEAD:refs/heads/"+branch); err != nil {
		return fmt.Errorf("failed to push to %s/%s: %w", remote, branch, err)
	}
	return nil
}

// GetDiff returns the git diff output for the repository, optionally limited
// to paths.
// SECURITY: repoPath must be a validated, trusted path. This function
// does not perform path validation or sandboxing.
func (g *Git) GetDiff(ctx context.Context, repoPath string, staged bool, paths ...string) (string, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--staged")
	}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	return g.run(ctx, repoPath, args...)
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// Version returns the git version in semver form, e.g. "v2.43.0".
func (g *Git) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, g.gitPath, "version").Output()
	if err != nil {
		return "", fmt.Errorf("git version failed: %w", err)
	}
	return parseVersion(string(out))
}

func parseVersion(out string) (string, error) {
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unrecognized git version output %q", strings.TrimSpace(out))
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	return fmt.Sprintf("v%s.%s.%s", m[1], m[2], patch), nil
}

func splitNUL(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\x00") {
		if p = strings.TrimRight(p, "\n"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
