package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readmesync/readmesync/internal/config"
)

func TestDecide(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name    string
		changes Changes
		want    Decision
	}{
		{
			name:    "target edited alone fails",
			changes: Changes{Files: []string{"README.md"}, Message: "fix typo"},
			want:    Decision{Action: ActionFail, Reason: ReasonDirectEdit},
		},
		{
			name:    "target edited with unrelated files fails",
			changes: Changes{Files: []string{"src/lib.py", "README.md"}, Message: "docs"},
			want:    Decision{Action: ActionFail, Reason: ReasonDirectEdit},
		},
		{
			name:    "source changed regenerates",
			changes: Changes{Files: []string{"README.py"}, Message: "docs: explain Result"},
			want:    Decision{Action: ActionRegenerate, Reason: ReasonSourceChanged},
		},
		{
			name:    "source and target changed together regenerates",
			changes: Changes{Files: []string{"README.md", "README.py"}, Message: "docs"},
			want:    Decision{Action: ActionRegenerate, Reason: ReasonSourceChanged},
		},
		{
			name:    "unrelated change skips",
			changes: Changes{Files: []string{"expression/core/result.py"}, Message: "feat"},
			want:    Decision{Action: ActionSkip, Reason: ReasonSourceUnchanged},
		},
		{
			name:    "empty change set skips",
			changes: Changes{Message: "merge"},
			want:    Decision{Action: ActionSkip, Reason: ReasonSourceUnchanged},
		},
		{
			name:    "auto-sync commit short-circuits",
			changes: Changes{Files: []string{"README.md"}, Message: config.DefaultMarker},
			want:    Decision{Action: ActionSkip, Reason: ReasonAutoSync},
		},
		{
			name:    "marker anywhere in the message short-circuits",
			changes: Changes{Files: []string{"README.py"}, Message: "Merge branch 'x'\n\n* [auto] Sync README.md"},
			want:    Decision{Action: ActionSkip, Reason: ReasonAutoSync},
		},
		{
			name:    "nested file with the same name is not the target",
			changes: Changes{Files: []string{"docs/README.md"}, Message: "docs"},
			want:    Decision{Action: ActionSkip, Reason: ReasonSourceUnchanged},
		},
		{
			name:    "dot-prefixed path is normalized",
			changes: Changes{Files: []string{"./README.md"}},
			want:    Decision{Action: ActionFail, Reason: ReasonDirectEdit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(cfg, tt.changes))
		})
	}
}

func TestDecideCustomPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "docs/readme_src.py"
	cfg.Target = "docs/README.md"
	cfg.Marker = "[bot] docs"

	assert.Equal(t, ActionFail, Decide(cfg, Changes{Files: []string{"docs/README.md"}}).Action)
	assert.Equal(t, ActionSkip, Decide(cfg, Changes{Files: []string{"README.md"}}).Action)
	assert.Equal(t, ActionRegenerate, Decide(cfg, Changes{Files: []string{"docs/readme_src.py"}}).Action)
	assert.Equal(t, ActionSkip, Decide(cfg, Changes{Files: []string{"docs/README.md"}, Message: "[bot] docs"}).Action)
}

func TestDirectEditError(t *testing.T) {
	var err error = &DirectEditError{Target: "README.md", Source: "README.py"}

	assert.True(t, errors.Is(err, ErrDirectEdit))
	assert.Equal(t, "README.md was edited directly; edit README.py and let CI regenerate README.md", err.Error())

	var de *DirectEditError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "README.md", de.Target)
}
