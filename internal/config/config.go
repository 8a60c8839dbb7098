package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the repository root.
const DefaultFileName = ".readmesync.yaml"

// DefaultMarker is the commit message of automatic sync commits. Its presence
// in a commit message stops the guard from reacting to that commit.
const DefaultMarker = "[auto] Sync README.md"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Output modes for the generator.
const (
	// OutputStdout writes the generator's stdout to the target.
	OutputStdout = "stdout"
	// OutputInPlace expects the generator to write the target itself.
	OutputInPlace = "inplace"
)

// Hook is a single pre-commit check.
type Hook struct {
	// ID names the hook in output and in the pre-commit config
	ID string `yaml:"id"`

	// Run is the argv of the check; Run[0] is looked up in PATH
	Run []string `yaml:"run"`

	// Files is a regexp over staged paths; empty means the hook always runs
	Files string `yaml:"files,omitempty"`

	// PassFilenames appends the matching staged files to Run
	PassFilenames bool `yaml:"pass_filenames,omitempty"`

	// Modifies marks hooks that may rewrite files (e.g. ruff --fix).
	// They run serially before the read-only hooks.
	Modifies bool `yaml:"modifies,omitempty"`

	SkipInCI bool `yaml:"skip_in_ci,omitempty"`
	OnlyInCI bool `yaml:"only_in_ci,omitempty"`
}

// Config is the contents of .readmesync.yaml.
type Config struct {
	// Source is the generator input (README.py), relative to the repo root
	Source string `yaml:"source"`

	// Target is the generated file (README.md), relative to the repo root
	Target string `yaml:"target"`

	// Generator is the argv that renders Source
	Generator []string `yaml:"generator"`

	// Output is OutputStdout or OutputInPlace
	Output string `yaml:"output"`

	// Marker is the auto-sync commit message and loop-guard substring
	Marker string `yaml:"marker"`

	// Base is the revision HEAD is compared against
	Base string `yaml:"base"`

	Remote string `yaml:"remote"`

	// Branch to push to; empty pushes the current branch
	Branch string `yaml:"branch,omitempty"`

	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`

	// GeneratorTimeoutSeconds bounds a single generator run.
	// Default: 120, Range: 1-3600
	GeneratorTimeoutSeconds int `yaml:"generator_timeout_seconds"`

	Hooks []Hook `yaml:"hooks"`

	// MaxParallel bounds concurrently running read-only hooks.
	// Default: 4, Range: 1-64
	MaxParallel int `yaml:"max_parallel"`

	// HistoryPath is the run history database; empty disables history.
	// Relative paths resolve inside the repository's git directory.
	HistoryPath string `yaml:"history_path"`

	// Retention controls how much run history is kept
	Retention RetentionConfig `yaml:"retention"`
}

// DefaultHooks returns the stock Python checks: ruff with autofix, the ruff
// formatter in check mode and pyright.
func DefaultHooks() []Hook {
	return []Hook{
		{ID: "ruff", Run: []string{"ruff", "check", "--fix"}, Files: `\.pyi?$`, PassFilenames: true, Modifies: true},
		{ID: "ruff-format", Run: []string{"ruff", "format", "--check"}, Files: `\.pyi?$`, PassFilenames: true},
		{ID: "pyright", Run: []string{"pyright"}, Files: `\.pyi?$`},
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Source:                  "README.py",
		Target:                  "README.md",
		Generator:               []string{"python", "README.py"},
		Output:                  OutputStdout,
		Marker:                  DefaultMarker,
		Base:                    "HEAD^",
		Remote:                  "origin",
		AuthorName:              "github-actions[bot]",
		AuthorEmail:             "41898282+github-actions[bot]@users.noreply.github.com",
		GeneratorTimeoutSeconds: 120,
		Hooks:                   DefaultHooks(),
		MaxParallel:             4,
		HistoryPath:             "readmesync/history.db",
		Retention:               DefaultRetentionConfig(),
	}
}

// Load reads path on top of the defaults, applies READMESYNC_* environment
// overrides and validates the result. A missing file is not an error when
// path is the default name; the defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && filepath.Base(path) == DefaultFileName:
		// Use defaults
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from READMESYNC_* environment variables.
//
// Environment variables:
//   - READMESYNC_SOURCE, READMESYNC_TARGET, READMESYNC_MARKER
//   - READMESYNC_BASE, READMESYNC_REMOTE, READMESYNC_BRANCH
//   - READMESYNC_GENERATOR_TIMEOUT_SECONDS, READMESYNC_MAX_PARALLEL
//   - READMESYNC_HISTORY_PATH, READMESYNC_HISTORY_KEEP
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"READMESYNC_SOURCE", &c.Source},
		{"READMESYNC_TARGET", &c.Target},
		{"READMESYNC_MARKER", &c.Marker},
		{"READMESYNC_BASE", &c.Base},
		{"READMESYNC_REMOTE", &c.Remote},
		{"READMESYNC_BRANCH", &c.Branch},
		{"READMESYNC_HISTORY_PATH", &c.HistoryPath},
	}
	for _, s := range strs {
		if err := parseEnvString(s.key, s.dest); err != nil {
			return err
		}
	}
	if err := parseEnvInt("READMESYNC_GENERATOR_TIMEOUT_SECONDS", &c.GeneratorTimeoutSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("READMESYNC_MAX_PARALLEL", &c.MaxParallel); err != nil {
		return err
	}
	if err := parseEnvInt("READMESYNC_HISTORY_KEEP", &c.Retention.Keep); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration has valid values.
func (c *Config) Validate() error {
	if err := validateRepoPath("source", c.Source); err != nil {
		return err
	}
	if err := validateRepoPath("target", c.Target); err != nil {
		return err
	}
	if filepath.Clean(c.Source) == filepath.Clean(c.Target) {
		return fmt.Errorf("%w: source and target must differ (both %q)", ErrInvalid, c.Source)
	}
	if len(c.Generator) == 0 || c.Generator[0] == "" {
		return fmt.Errorf("%w: generator command is required", ErrInvalid)
	}
	if c.Output != OutputStdout && c.Output != OutputInPlace {
		return fmt.Errorf("%w: output must be %q or %q (got %q)", ErrInvalid, OutputStdout, OutputInPlace, c.Output)
	}
	if strings.TrimSpace(c.Marker) == "" {
		return fmt.Errorf("%w: marker is required", ErrInvalid)
	}
	if c.Base == "" {
		return fmt.Errorf("%w: base revision is required", ErrInvalid)
	}
	if c.GeneratorTimeoutSeconds < 1 || c.GeneratorTimeoutSeconds > 3600 {
		return fmt.Errorf("%w: generator_timeout_seconds must be between 1 and 3600 (got %d)", ErrInvalid, c.GeneratorTimeoutSeconds)
	}
	if c.MaxParallel < 1 || c.MaxParallel > 64 {
		return fmt.Errorf("%w: max_parallel must be between 1 and 64 (got %d)", ErrInvalid, c.MaxParallel)
	}

	seen := make(map[string]bool)
	for i, h := range c.Hooks {
		if h.ID == "" {
			return fmt.Errorf("%w: hook %d has no id", ErrInvalid, i)
		}
		if seen[h.ID] {
			return fmt.Errorf("%w: duplicate hook id %q", ErrInvalid, h.ID)
		}
		seen[h.ID] = true
		if len(h.Run) == 0 || h.Run[0] == "" {
			return fmt.Errorf("%w: hook %q has an empty run command", ErrInvalid, h.ID)
		}
		if h.SkipInCI && h.OnlyInCI {
			return fmt.Errorf("%w: hook %q sets both skip_in_ci and only_in_ci", ErrInvalid, h.ID)
		}
		if h.Files != "" {
			if _, err := regexp.Compile(h.Files); err != nil {
				return fmt.Errorf("%w: hook %q files pattern: %v", ErrInvalid, h.ID, err)
			}
		}
	}

	if err := c.Retention.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// GeneratorTimeout returns the generator deadline as a time.Duration.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.GeneratorTimeoutSeconds) * time.Second
}

// Author returns the auto-sync commit author in "Name <email>" form.
func (c *Config) Author() string {
	if c.AuthorName == "" || c.AuthorEmail == "" {
		return ""
	}
	return fmt.Sprintf("%s <%s>", c.AuthorName, c.AuthorEmail)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func validateRepoPath(field, p string) error {
	if p == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("%w: %s must be relative to the repository root (got %q)", ErrInvalid, field, p)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s escapes the repository (got %q)", ErrInvalid, field, p)
	}
	return nil
}
