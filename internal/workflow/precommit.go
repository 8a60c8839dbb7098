// Package workflow renders and inspects the files that wire readmesync into a
// repository: the pre-commit configuration and the GitHub Actions workflow.
package workflow

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/readmesync/readmesync/internal/config"
	"github.com/readmesync/readmesync/internal/gates"
)

// PreCommitPath is the pre-commit framework configuration file.
const PreCommitPath = ".pre-commit-config.yaml"

const header = "# Generated by readmesync init. Edit .readmesync.yaml and rerun with --force.\n"

// PreCommitConfig is the subset of .pre-commit-config.yaml readmesync uses.
type PreCommitConfig struct {
	Repos []PreCommitRepo `yaml:"repos"`
}

// PreCommitRepo is one entry of the repos list.
type PreCommitRepo struct {
	Repo  string          `yaml:"repo"`
	Rev   string          `yaml:"rev,omitempty"`
	Hooks []PreCommitHook `yaml:"hooks"`
}

// PreCommitHook is one hook definition.
type PreCommitHook struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name,omitempty"`
	Entry         string `yaml:"entry,omitempty"`
	Language      string `yaml:"language,omitempty"`
	Files         string `yaml:"files,omitempty"`
	PassFilenames *bool  `yaml:"pass_filenames,omitempty"`
	AlwaysRun     bool   `yaml:"always_run,omitempty"`
}

// HookIDs returns every hook id across all repos.
func (p *PreCommitConfig) HookIDs() []string {
	var ids []string
	for _, r := range p.Repos {
		for _, h := range r.Hooks {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

// Hook finds a hook by id.
func (p *PreCommitConfig) Hook(id string) (PreCommitHook, bool) {
	for _, r := range p.Repos {
		for _, h := range r.Hooks {
			if h.ID == id {
				return h, true
			}
		}
	}
	return PreCommitHook{}, false
}

// NewPreCommitConfig builds a local-repo pre-commit configuration. Every
// hook delegates to readmesync so the pre-commit framework and the
// installed git hook run the same checks.
func NewPreCommitConfig(cfg *config.Config) *PreCommitConfig {
	no := false
	hooks := []PreCommitHook{{
		ID:            gates.GuardHookID,
		Name:          fmt.Sprintf("%s is generated from %s", cfg.Target, cfg.Source),
		Entry:         "readmesync pre-commit --hook " + gates.GuardHookID,
		Language:      "system",
		PassFilenames: &no,
		AlwaysRun:     true,
	}}
	for _, h := range cfg.Hooks {
		hooks = append(hooks, PreCommitHook{
			ID:            h.ID,
			Name:          strings.Join(h.Run, " "),
			Entry:         "readmesync pre-commit --hook " + h.ID,
			Language:      "system",
			Files:         h.Files,
			PassFilenames: &no,
		})
	}
	return &PreCommitConfig{Repos: []PreCommitRepo{{Repo: "local", Hooks: hooks}}}
}

// RenderPreCommit renders .pre-commit-config.yaml for cfg.
func RenderPreCommit(cfg *config.Config) ([]byte, error) {
	data, err := yaml.Marshal(NewPreCommitConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", PreCommitPath, err)
	}
	return append([]byte(header), data...), nil
}

// ParsePreCommit parses a .pre-commit-config.yaml document.
func ParsePreCommit(data []byte) (*PreCommitConfig, error) {
	var p PreCommitConfig
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", PreCommitPath, err)
	}
	return &p, nil
}

// CheckPreCommit lists what p is missing for cfg: the readme guard and
// every configured hook.
func CheckPreCommit(p *PreCommitConfig, cfg *config.Config) []string {
	var problems []string
	if _, ok := p.Hook(gates.GuardHookID); !ok {
		problems = append(problems, fmt.Sprintf("hook %q is not declared", gates.GuardHookID))
	}
	for _, h := range cfg.Hooks {
		if _, ok := p.Hook(h.ID); !ok {
			problems = append(problems, fmt.Sprintf("hook %q is not declared", h.ID))
		}
	}
	return problems
}
