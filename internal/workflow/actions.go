package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/readmesync/readmesync/internal/config"
)

// WorkflowPath is where init writes the GitHub Actions workflow.
const WorkflowPath = ".github/workflows/readme-sync.yml"

// Workflow is the subset of a GitHub Actions workflow readmesync uses.
type Workflow struct {
	Name string         `yaml:"name"`
	On   any            `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Job is one workflow job.
type Job struct {
	If          string            `yaml:"if,omitempty"`
	RunsOn      string            `yaml:"runs-on"`
	Permissions map[string]string `yaml:"permissions,omitempty"`
	Steps       []Step            `yaml:"steps"`
}

// Step is one job step.
type Step struct {
	ID   string         `yaml:"id,omitempty"`
	Name string         `yaml:"name,omitempty"`
	If   string         `yaml:"if,omitempty"`
	Uses string         `yaml:"uses,omitempty"`
	With map[string]any `yaml:"with,omitempty"`
	Run  string         `yaml:"run,omitempty"`
}

// JobName is the job init writes.
const JobName = "readme-sync"

// MarkerCondition is the job condition that skips auto-sync commits.
func MarkerCondition(marker string) string {
	return fmt.Sprintf("!contains(github.event.head_commit.message, '%s')", strings.ReplaceAll(marker, "'", "''"))
}

// NewWorkflow builds the push-triggered sync workflow for cfg.
func NewWorkflow(cfg *config.Config) *Workflow {
	return &Workflow{
		Name: "README sync",
		On:   map[string]any{"push": map[string]any{}},
		Jobs: map[string]Job{
			JobName: {
				If:          MarkerCondition(cfg.Marker),
				RunsOn:      "ubuntu-latest",
				Permissions: map[string]string{"contents": "write"},
				Steps: []Step{
					{Uses: "actions/checkout@v4", With: map[string]any{"fetch-depth": 2}},
					{Uses: "actions/setup-python@v5", With: map[string]any{"python-version": "3.x"}},
					{Uses: "actions/setup-go@v5", With: map[string]any{"go-version": "stable"}},
					{Name: "Install readmesync", Run: "go install github.com/readmesync/readmesync/cmd/readmesync@latest"},
					{ID: "sync", Name: fmt.Sprintf("Sync %s", cfg.Target), Run: "readmesync ci"},
				},
			},
		},
	}
}

// RenderWorkflow renders the workflow file for cfg.
func RenderWorkflow(cfg *config.Config) ([]byte, error) {
	data, err := yaml.Marshal(NewWorkflow(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", WorkflowPath, err)
	}
	return append([]byte(header), data...), nil
}

// ParseWorkflow parses a GitHub Actions workflow document.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	return &w, nil
}

// TriggersOnPush reports whether the workflow runs on push events. The
// string, list and map forms of "on" are all accepted.
func (w *Workflow) TriggersOnPush() bool {
	switch on := w.On.(type) {
	case string:
		return on == "push"
	case []any:
		for _, e := range on {
			if s, ok := e.(string); ok && s == "push" {
				return true
			}
		}
	case map[string]any:
		_, ok := on["push"]
		return ok
	}
	return false
}

// CheckWorkflow lists what w is missing to run the guard safely.
func CheckWorkflow(w *Workflow, cfg *config.Config) []string {
	var problems []string
	if !w.TriggersOnPush() {
		problems = append(problems, "workflow does not trigger on push")
	}

	var (
		runsCI     bool
		guarded    bool
		checkedOut bool
		depthOK    bool
	)
	for _, job := range w.Jobs {
		if strings.Contains(job.If, cfg.Marker) {
			guarded = true
		}
		for _, s := range job.Steps {
			if strings.Contains(s.Run, "readmesync ci") {
				runsCI = true
				if strings.Contains(s.If, cfg.Marker) {
					guarded = true
				}
			}
			if strings.HasPrefix(s.Uses, "actions/checkout@") {
				checkedOut = true
				if d, ok := fetchDepth(s.With); ok && (d == 0 || d >= 2) {
					depthOK = true
				}
			}
		}
	}

	if !runsCI {
		problems = append(problems, "no step runs `readmesync ci`")
	}
	if !guarded {
		problems = append(problems, fmt.Sprintf("no job condition skips commits containing %q", cfg.Marker))
	}
	switch {
	case !checkedOut:
		problems = append(problems, "no actions/checkout step")
	case !depthOK:
		problems = append(problems, "checkout must use fetch-depth 2 or more (or 0 for full history)")
	}
	return problems
}

func fetchDepth(with map[string]any) (int, bool) {
	v, ok := with["fetch-depth"]
	if !ok {
		return 1, true
	}
	switch d := v.(type) {
	case int:
		return d, true
	case string:
		n, err := strconv.Atoi(d)
		return n, err == nil
	}
	return 0, false
}
