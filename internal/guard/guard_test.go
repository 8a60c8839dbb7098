package guard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmesync/readmesync/internal/config"
	"github.com/readmesync/readmesync/internal/events"
	"github.com/readmesync/readmesync/internal/git"
)

type fakeGit struct {
	head      string
	hasParent bool
	files     []string
	staged    []string
	message   string

	commitErr error
	pushErr   error

	baseSeen string
	commits  []git.CommitOptions
	pushes   []git.PushOptions
}

func (f *fakeGit) HasParent(context.Context, string, string) (bool, error) { return f.hasParent, nil }

func (f *fakeGit) ChangedFiles(_ context.Context, _, base, _ string) ([]string, error) {
	f.baseSeen = base
	return f.files, nil
}

func (f *fakeGit) StagedFiles(context.Context, string) ([]string, error) { return f.staged, nil }

func (f *fakeGit) CommitMessage(context.Context, string, string) (string, error) {
	return f.message, nil
}

func (f *fakeGit) RevParse(context.Context, string, string) (string, error) { return f.head, nil }

func (f *fakeGit) CommitChanges(_ context.Context, _ string, opts git.CommitOptions) (string, error) {
	if f.commitErr != nil {
		return "", f.commitErr
	}
	f.commits = append(f.commits, opts)
	return "c0ffee0000000000000000000000000000000000", nil
}

func (f *fakeGit) Push(_ context.Context, _ string, opts git.PushOptions) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, opts)
	return nil
}

type fakeGenerator struct {
	rendered []byte
	current  []byte
	err      error
	inPlace  bool // Run also overwrites current, like an in-place generator
	runs     int
	writes   int
}

func (f *fakeGenerator) Run(context.Context) ([]byte, error) {
	f.runs++
	if f.inPlace {
		f.current = f.rendered
	}
	return f.rendered, f.err
}

func (f *fakeGenerator) Remove() error {
	f.current = nil
	return nil
}

func (f *fakeGenerator) Current() ([]byte, error) { return f.current, nil }

func (f *fakeGenerator) Write(data []byte) (bool, error) {
	f.writes++
	changed := string(f.current) != string(data)
	f.current = data
	return changed, nil
}

func (f *fakeGenerator) Generate(ctx context.Context) (bool, error) {
	data, err := f.Run(ctx)
	if err != nil {
		return false, err
	}
	return f.Write(data)
}

type memRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *memRecorder) Record(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memRecorder) types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.EventType
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestGuard(t *testing.T, g *fakeGit, gen *fakeGenerator) (*Guard, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	guard, err := New(&Config{
		Settings:  config.Default(),
		RepoPath:  "/repo",
		Git:       g,
		Generator: gen,
		Recorder:  rec,
	})
	require.NoError(t, err)
	return guard, rec
}

func TestNewValidation(t *testing.T) {
	gen := &fakeGenerator{}
	g := &fakeGit{}

	_, err := New(&Config{RepoPath: "/repo", Git: g, Generator: gen})
	assert.Error(t, err, "settings required")
	_, err = New(&Config{Settings: config.Default(), Git: g, Generator: gen})
	assert.Error(t, err, "repo path required")
	_, err = New(&Config{Settings: config.Default(), RepoPath: "/repo", Generator: gen})
	assert.Error(t, err, "git required")
	_, err = New(&Config{Settings: config.Default(), RepoPath: "/repo", Git: g})
	assert.Error(t, err, "generator required")
}

func TestInspectRootCommit(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: false, files: []string{"README.py"}, message: "initial"}
	guard, _ := newTestGuard(t, g, &fakeGenerator{})

	changes, err := guard.Inspect(context.Background())
	require.NoError(t, err)
	assert.True(t, changes.Initial)
	assert.Equal(t, "", g.baseSeen, "root commit compares against the empty tree")
	assert.Equal(t, "abc", changes.Head)
}

func TestInspectUsesBase(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, message: "x"}
	guard, _ := newTestGuard(t, g, &fakeGenerator{})

	_, err := guard.Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HEAD^", g.baseSeen)
}

func TestCheckDirectEdit(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"README.md"}, message: "typo"}
	gen := &fakeGenerator{}
	guard, rec := newTestGuard(t, g, gen)

	res, err := guard.Check(context.Background(), "run-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirectEdit))
	assert.Equal(t, ActionFail, res.Decision.Action)
	assert.Equal(t, 0, gen.runs, "check never runs the generator")
	assert.Equal(t, []events.EventType{
		events.EventTypeRunStarted,
		events.EventTypeChangesInspected,
		events.EventTypeDirectEdit,
		events.EventTypeRunFailed,
	}, rec.types())
}

func TestRunRegeneratesCommitsAndPushes(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"README.py"}, message: "docs: more examples"}
	gen := &fakeGenerator{current: []byte("old"), rendered: []byte("new")}
	guard, rec := newTestGuard(t, g, gen)

	res, err := guard.Run(context.Background(), "run-1", SyncOptions{Commit: true, Push: true})
	require.NoError(t, err)

	assert.Equal(t, ActionRegenerate, res.Decision.Action)
	assert.True(t, res.Regenerated)
	assert.True(t, res.Changed)
	assert.True(t, res.Pushed)
	assert.NotEmpty(t, res.Commit)

	require.Len(t, g.commits, 1)
	commit := g.commits[0]
	assert.Equal(t, config.DefaultMarker, commit.Message)
	assert.Equal(t, []string{"README.md"}, commit.Paths)
	assert.Equal(t, "github-actions[bot]", commit.CommitterName)

	require.Len(t, g.pushes, 1)
	assert.Equal(t, "origin", g.pushes[0].Remote)

	assert.Equal(t, []events.EventType{
		events.EventTypeRunStarted,
		events.EventTypeChangesInspected,
		events.EventTypeRegenerated,
		events.EventTypeCommitted,
		events.EventTypePushed,
	}, rec.types())
}

func TestRunIdempotentNoCommit(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"README.py"}, message: "docs: whitespace"}
	gen := &fakeGenerator{current: []byte("same"), rendered: []byte("same")}
	guard, _ := newTestGuard(t, g, gen)

	res, err := guard.Run(context.Background(), "run-1", SyncOptions{Commit: true, Push: true})
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.False(t, res.Changed)
	assert.Empty(t, g.commits, "unchanged output must not produce a commit")
	assert.Empty(t, g.pushes)
}

func TestRunSkipsAutoSyncCommit(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"README.md"}, message: config.DefaultMarker}
	gen := &fakeGenerator{current: []byte("old"), rendered: []byte("new")}
	guard, _ := newTestGuard(t, g, gen)

	res, err := guard.Run(context.Background(), "run-1", SyncOptions{Commit: true, Push: true})
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, res.Decision.Action)
	assert.Equal(t, ReasonAutoSync, res.Decision.Reason)
	assert.Equal(t, 0, gen.runs)
	assert.Empty(t, g.commits)
}

func TestRunSkipsUnrelatedChange(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"pyproject.toml"}, message: "chore"}
	gen := &fakeGenerator{}
	guard, _ := newTestGuard(t, g, gen)

	res, err := guard.Run(context.Background(), "", SyncOptions{Commit: true})
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, res.Decision.Action)
	assert.Equal(t, 0, gen.runs)
}

func TestRunGeneratorFailure(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"README.py"}, message: "docs"}
	gen := &fakeGenerator{err: errors.New("boom")}
	guard, rec := newTestGuard(t, g, gen)

	_, err := guard.Run(context.Background(), "run-1", SyncOptions{Commit: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, g.commits)
	assert.Contains(t, rec.types(), events.EventTypeRunFailed)
}

func TestRunPushFailure(t *testing.T) {
	g := &fakeGit{head: "abc", hasParent: true, files: []string{"README.py"}, message: "docs", pushErr: errors.New("rejected")}
	gen := &fakeGenerator{current: []byte("a"), rendered: []byte("b")}
	guard, _ := newTestGuard(t, g, gen)

	res, err := guard.Run(context.Background(), "run-1", SyncOptions{Commit: true, Push: true})
	require.Error(t, err)
	assert.NotEmpty(t, res.Commit, "commit is reported even when the push fails")
	assert.False(t, res.Pushed)
}

func TestSyncWithoutCommit(t *testing.T) {
	g := &fakeGit{}
	gen := &fakeGenerator{current: []byte("a"), rendered: []byte("b")}
	guard, _ := newTestGuard(t, g, gen)

	res, err := guard.Sync(context.Background(), "run-1", SyncOptions{})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, g.commits)
	assert.Equal(t, "b", string(gen.current))
}

func TestDrift(t *testing.T) {
	tests := []struct {
		name    string
		current []byte
		render  []byte
		want    bool
	}{
		{"in sync", []byte("x"), []byte("x"), false},
		{"stale", []byte("x"), []byte("y"), true},
		{"missing target", nil, []byte("y"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{current: tt.current, rendered: tt.render}
			guard, _ := newTestGuard(t, &fakeGit{}, gen)

			drift, err := guard.Drift(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, drift)
			assert.Equal(t, 0, gen.writes, "stdout mode never writes during a drift check")
		})
	}
}

func TestDriftInPlaceRestoresTarget(t *testing.T) {
	tests := []struct {
		name    string
		current []byte
		err     error
		want    bool
	}{
		{"stale", []byte("old"), nil, true},
		{"created", nil, nil, true},
		{"generator fails", []byte("old"), errors.New("boom"), false},
		{"generator fails on missing target", nil, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{current: tt.current, rendered: []byte("new"), err: tt.err, inPlace: true}
			guard, _ := newTestGuard(t, &fakeGit{}, gen)
			guard.cfg.Output = config.OutputInPlace

			drift, err := guard.Drift(context.Background())
			if tt.err != nil {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, drift)
			assert.Equal(t, tt.current, gen.current, "target must be left as it was found")
		})
	}
}

func TestCheckStaged(t *testing.T) {
	tests := []struct {
		name    string
		staged  []string
		wantErr bool
	}{
		{"target only", []string{"README.md"}, true},
		{"target and source", []string{"README.md", "README.py"}, false},
		{"source only", []string{"README.py"}, false},
		{"nothing relevant", []string{"setup.py"}, false},
		{"nothing staged", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard, _ := newTestGuard(t, &fakeGit{staged: tt.staged}, &fakeGenerator{})
			err := guard.CheckStaged(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDirectEdit)
				return
			}
			assert.NoError(t, err)
		})
	}
}
