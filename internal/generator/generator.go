// Package generator runs the command that renders the target document from
// its source and writes the result back to the repository.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/readmesync/readmesync/internal/config"
)

// ErrTimeout is returned when the generator does not finish in time.
var ErrTimeout = errors.New("generator timed out")

// maxStderr bounds how much generator stderr is carried in errors.
const maxStderr = 4000

// Runner executes the configured generator in a repository.
type Runner struct {
	repoPath string
	argv     []string
	output   string
	target   string
	timeout  time.Duration
}

// New creates a Runner for the generator described by cfg.
func New(repoPath string, cfg *config.Config) (*Runner, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	if len(cfg.Generator) == 0 {
		return nil, fmt.Errorf("generator command is required")
	}
	return &Runner{
		repoPath: repoPath,
		argv:     cfg.Generator,
		output:   cfg.Output,
		target:   cfg.Target,
		timeout:  cfg.GeneratorTimeout(),
	}, nil
}

// Command returns the generator argv as a display string.
func (r *Runner) Command() string {
	return strings.Join(r.argv, " ")
}

// Run executes the generator and returns the rendered document.
//
// In stdout mode the document is the command's stdout and the target on disk
// is left alone. In inplace mode the command writes the target itself and the
// document is read back afterwards.
func (r *Runner) Run(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Dir = r.repoPath
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding stdout open must not outlive the deadline by much
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %v: %s", ErrTimeout, r.timeout, r.Command())
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("generator %q not found in PATH: %w", r.argv[0], err)
		}
		return nil, fmt.Errorf("generator %q failed: %w%s", r.Command(), err, formatStderr(stderr.String()))
	}

	if r.output == config.OutputInPlace {
		data, err := os.ReadFile(filepath.Join(r.repoPath, r.target))
		if err != nil {
			return nil, fmt.Errorf("generator did not produce %s: %w", r.target, err)
		}
		return data, nil
	}
	return stdout.Bytes(), nil
}

// Current returns the target as it is on disk. A missing target reads as nil.
func (r *Runner) Current() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.repoPath, r.target))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.target, err)
	}
	return data, nil
}

// Write replaces the target with data and reports whether the content changed.
// Identical content is not rewritten so the file's mtime stays put.
func (r *Runner) Write(data []byte) (bool, error) {
	current, err := r.Current()
	if err != nil {
		return false, err
	}
	if current != nil && bytes.Equal(current, data) {
		return false, nil
	}
	if err := writeAtomic(filepath.Join(r.repoPath, r.target), data); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the target. A missing target is not an error.
func (r *Runner) Remove() error {
	err := os.Remove(filepath.Join(r.repoPath, r.target))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", r.target, err)
	}
	return nil
}

// Generate runs the generator and writes its output to the target.
// It reports whether the target changed.
func (r *Runner) Generate(ctx context.Context) (bool, error) {
	before, err := r.Current()
	if err != nil {
		return false, err
	}
	data, err := r.Run(ctx)
	if err != nil {
		return false, err
	}
	if r.output == config.OutputInPlace {
		// The generator already wrote the file; compare with what was there.
		return !bytes.Equal(before, data), nil
	}
	return r.Write(data)
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func formatStderr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxStderr {
		s = s[:maxStderr] + "\n... (truncated)"
	}
	return "\n" + s
}
