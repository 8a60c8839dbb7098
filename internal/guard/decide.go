// Package guard keeps a generated document in step with its source.
//
// A commit may change the source (the generator input) or the target (the
// generated document). Changing the target on its own is a direct edit and
// is rejected. Changing the source makes the guard regenerate the target and,
// in CI, commit the result with the auto-sync marker. Commits carrying the
// marker are ignored so the guard never reacts to its own commits.
package guard

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/readmesync/readmesync/internal/config"
)

// Action is what the guard does about a commit.
type Action string

const (
	// ActionSkip means nothing needs to happen
	ActionSkip Action = "skip"
	// ActionFail means the target was edited directly
	ActionFail Action = "fail"
	// ActionRegenerate means the source changed and the target must be rebuilt
	ActionRegenerate Action = "regenerate"
)

// Reasons reported with a Decision.
const (
	ReasonAutoSync        = "auto-sync commit"
	ReasonDirectEdit      = "direct edit"
	ReasonSourceChanged   = "source changed"
	ReasonSourceUnchanged = "source unchanged"
)

// Changes describes the commit (or staged set) being guarded.
type Changes struct {
	// Head is the commit hash; empty for staged changes
	Head string

	// Files are repository-relative paths with forward slashes
	Files []string

	// Message is the commit message; empty for staged changes
	Message string

	// Initial is true when Head is a root commit
	Initial bool
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Reason string
}

// ErrDirectEdit is matched by every DirectEditError.
var ErrDirectEdit = errors.New("generated file edited directly")

// DirectEditError reports a change to the target without a change to its source.
type DirectEditError struct {
	Target string
	Source string
}

func (e *DirectEditError) Error() string {
	return fmt.Sprintf("%s was edited directly; edit %s and let CI regenerate %s", e.Target, e.Source, e.Target)
}

// Is makes errors.Is(err, ErrDirectEdit) hold.
func (e *DirectEditError) Is(target error) bool {
	return target == ErrDirectEdit
}

// Decide applies the guard rules to a change set. Rules are evaluated in
// order and the first match wins:
//
//  1. the message contains the marker: skip (our own commit)
//  2. the target changed and the source did not: fail
//  3. the source changed: regenerate
//  4. otherwise: skip
func Decide(cfg *config.Config, c Changes) Decision {
	if c.Message != "" && strings.Contains(c.Message, cfg.Marker) {
		return Decision{Action: ActionSkip, Reason: ReasonAutoSync}
	}

	source := normalize(cfg.Source)
	target := normalize(cfg.Target)

	var sourceChanged, targetChanged bool
	for _, f := range c.Files {
		switch normalize(f) {
		case source:
			sourceChanged = true
		case target:
			targetChanged = true
		}
	}

	switch {
	case targetChanged && !sourceChanged:
		return Decision{Action: ActionFail, Reason: ReasonDirectEdit}
	case sourceChanged:
		return Decision{Action: ActionRegenerate, Reason: ReasonSourceChanged}
	default:
		return Decision{Action: ActionSkip, Reason: ReasonSourceUnchanged}
	}
}

func normalize(p string) string {
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
}
