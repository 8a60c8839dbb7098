package guard

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/readmesync/readmesync/internal/config"
	"github.com/readmesync/readmesync/internal/events"
	"github.com/readmesync/readmesync/internal/git"
)

// Generator renders the target. *generator.Runner implements it.
type Generator interface {
	// Run renders the document without writing the target (stdout mode)
	Run(ctx context.Context) ([]byte, error)
	// Current returns the target on disk, nil if missing
	Current() ([]byte, error)
	// Write replaces the target, reporting whether it changed
	Write(data []byte) (bool, error)
	// Remove deletes the target if it exists
	Remove() error
	// Generate renders and writes the target, reporting whether it changed
	Generate(ctx context.Context) (bool, error)
}

// Config holds guard configuration
type Config struct {
	Settings  *config.Config
	RepoPath  string
	Git       git.Operations
	Generator Generator
	Recorder  events.Recorder // Optional: defaults to events.Discard
	Logger    *slog.Logger    // Optional: defaults to slog.Default()
}

// Guard enforces that the target only changes through its generator.
type Guard struct {
	cfg      *config.Config
	repoPath string
	git      git.Operations
	gen      Generator
	rec      events.Recorder
	log      *slog.Logger
}

// SyncOptions controls what Sync and Run do after regenerating.
type SyncOptions struct {
	// Commit stages the target and commits it with the marker message
	Commit bool
	// Push pushes the auto-sync commit (requires Commit)
	Push bool
}

// Result describes one guard run.
type Result struct {
	RunID    string
	Head     string
	Changes  Changes
	Decision Decision

	// Regenerated is true when the generator ran
	Regenerated bool
	// Changed is true when regeneration altered the target
	Changed bool
	// Commit is the auto-sync commit hash, if one was made
	Commit string
	Pushed bool

	Duration time.Duration
}

// New creates a Guard.
func New(cfg *Config) (*Guard, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if cfg.RepoPath == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	if cfg.Git == nil {
		return nil, fmt.Errorf("git operations are required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = events.Discard
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		cfg:      cfg.Settings,
		repoPath: cfg.RepoPath,
		git:      cfg.Git,
		gen:      cfg.Generator,
		rec:      rec,
		log:      log,
	}, nil
}

// NewRunID returns a fresh identifier for a guard run.
func NewRunID() string {
	return uuid.NewString()
}

// Inspect reads the triggering commit: HEAD, its message and the files it
// changed relative to the configured base. A root commit is compared against
// the empty tree.
func (g *Guard) Inspect(ctx context.Context) (Changes, error) {
	head, err := g.git.RevParse(ctx, g.repoPath, "HEAD")
	if err != nil {
		return Changes{}, err
	}

	hasParent, err := g.git.HasParent(ctx, g.repoPath, "HEAD")
	if err != nil {
		return Changes{}, err
	}
	base := g.cfg.Base
	if !hasParent {
		base = ""
	}

	files, err := g.git.ChangedFiles(ctx, g.repoPath, base, "HEAD")
	if err != nil {
		return Changes{}, err
	}

	msg, err := g.git.CommitMessage(ctx, g.repoPath, "HEAD")
	if err != nil {
		return Changes{}, err
	}

	return Changes{
		Head:    head,
		Files:   files,
		Message: msg,
		Initial: !hasParent,
	}, nil
}

// Check inspects HEAD and decides what to do without side effects.
// A direct edit returns the result together with a *DirectEditError.
func (g *Guard) Check(ctx context.Context, runID string) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: runID}
	g.emit(ctx, runID, events.EventTypeRunStarted, "check")

	changes, err := g.Inspect(ctx)
	if err != nil {
		return g.fail(ctx, res, start, fmt.Errorf("failed to inspect HEAD: %w", err))
	}
	res.Head = changes.Head
	res.Changes = changes
	g.emit(ctx, runID, events.EventTypeChangesInspected, fmt.Sprintf("%d files changed in %s", len(changes.Files), short(changes.Head)))

	res.Decision = Decide(g.cfg, changes)
	g.log.Debug("guard decision",
		"head", short(changes.Head),
		"action", res.Decision.Action,
		"reason", res.Decision.Reason,
		"files", changes.Files)

	switch res.Decision.Action {
	case ActionFail:
		g.emit(ctx, runID, events.EventTypeDirectEdit, g.cfg.Target)
		return g.fail(ctx, res, start, &DirectEditError{Target: g.cfg.Target, Source: g.cfg.Source})
	case ActionSkip:
		g.emit(ctx, runID, events.EventTypeSkipped, res.Decision.Reason)
	}

	res.Duration = time.Since(start)
	return res, nil
}

// Sync regenerates the target unconditionally and, per opts, commits and
// pushes it. Unchanged output never produces a commit.
func (g *Guard) Sync(ctx context.Context, runID string, opts SyncOptions) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:    runID,
		Decision: Decision{Action: ActionRegenerate, Reason: "manual sync"},
	}
	g.emit(ctx, runID, events.EventTypeRunStarted, "sync")
	if err := g.regenerate(ctx, res, opts); err != nil {
		return g.fail(ctx, res, start, err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Run is the CI flow: Check, then regenerate, commit and push when the source
// changed in a commit that is not itself an auto-sync.
func (g *Guard) Run(ctx context.Context, runID string, opts SyncOptions) (*Result, error) {
	start := time.Now()
	res, err := g.Check(ctx, runID)
	if err != nil {
		return res, err
	}
	if res.Decision.Action != ActionRegenerate {
		return res, nil
	}
	if err := g.regenerate(ctx, res, opts); err != nil {
		return g.fail(ctx, res, start, err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (g *Guard) regenerate(ctx context.Context, res *Result, opts SyncOptions) error {
	g.log.Info("regenerating", "target", g.cfg.Target, "source", g.cfg.Source)
	changed, err := g.gen.Generate(ctx)
	if err != nil {
		return err
	}
	res.Regenerated = true
	res.Changed = changed
	g.emit(ctx, res.RunID, events.EventTypeRegenerated, g.cfg.Target)

	if !changed {
		g.log.Info("target already up to date", "target", g.cfg.Target)
		g.emit(ctx, res.RunID, events.EventTypeUnchanged, g.cfg.Target)
		return nil
	}
	if !opts.Commit {
		return nil
	}

	hash, err := g.git.CommitChanges(ctx, g.repoPath, git.CommitOptions{
		Message:        g.cfg.Marker,
		Author:         g.cfg.Author(),
		CommitterName:  g.cfg.AuthorName,
		CommitterEmail: g.cfg.AuthorEmail,
		Paths:          []string{g.cfg.Target},
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", g.cfg.Target, err)
	}
	res.Commit = hash
	g.log.Info("committed", "commit", short(hash), "message", g.cfg.Marker)
	g.emit(ctx, res.RunID, events.EventTypeCommitted, hash)

	if !opts.Push {
		return nil
	}
	if err := g.git.Push(ctx, g.repoPath, git.PushOptions{Remote: g.cfg.Remote, Branch: g.cfg.Branch}); err != nil {
		return err
	}
	res.Pushed = true
	g.log.Info("pushed", "remote", g.cfg.Remote, "commit", short(hash))
	g.emit(ctx, res.RunID, events.EventTypePushed, g.cfg.Remote)
	return nil
}

// Drift reports whether regenerating would change the target on disk.
// In inplace mode the generator rewrites the target, so the previous
// content is put back afterwards.
func (g *Guard) Drift(ctx context.Context) (bool, error) {
	before, err := g.gen.Current()
	if err != nil {
		return false, err
	}
	rendered, runErr := g.gen.Run(ctx)
	if g.cfg.Output == config.OutputInPlace {
		if err := g.restore(before); err != nil {
			return false, err
		}
	}
	if runErr != nil {
		return false, runErr
	}
	return before == nil || !bytes.Equal(before, rendered), nil
}

// restore puts the target back the way Drift found it. A nil before means
// the target did not exist.
func (g *Guard) restore(before []byte) error {
	var err error
	if before == nil {
		err = g.gen.Remove()
	} else {
		_, err = g.gen.Write(before)
	}
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", g.cfg.Target, err)
	}
	return nil
}

// CheckStaged applies the direct-edit rule to the files staged for commit.
func (g *Guard) CheckStaged(ctx context.Context) error {
	staged, err := g.git.StagedFiles(ctx, g.repoPath)
	if err != nil {
		return err
	}
	d := Decide(g.cfg, Changes{Files: staged})
	if d.Action == ActionFail {
		return &DirectEditError{Target: g.cfg.Target, Source: g.cfg.Source}
	}
	return nil
}

func (g *Guard) fail(ctx context.Context, res *Result, start time.Time, err error) (*Result, error) {
	res.Duration = time.Since(start)
	g.emit(ctx, res.RunID, events.EventTypeRunFailed, err.Error())
	return res, err
}

func (g *Guard) emit(ctx context.Context, runID string, typ events.EventType, msg string) {
	if runID == "" {
		return
	}
	if err := g.rec.Record(ctx, events.New(runID, typ, msg)); err != nil {
		g.log.Warn("failed to record event", "type", typ, "error", err)
	}
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
