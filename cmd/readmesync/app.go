package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/readmesync/readmesync/internal/config"
	"github.com/readmesync/readmesync/internal/events"
	"github.com/readmesync/readmesync/internal/generator"
	"github.com/readmesync/readmesync/internal/git"
	"github.com/readmesync/readmesync/internal/guard"
	"github.com/readmesync/readmesync/internal/storage"
	"github.com/readmesync/readmesync/internal/types"
)

// app wires the guard for one command invocation.
type app struct {
	cfg   *config.Config
	repo  string
	git   *git.Git
	gen   *generator.Runner
	guard *guard.Guard
	store storage.Storage // nil when history is disabled or unavailable
	log   *slog.Logger
}

// resolveConfigPath returns the explicit --config value or the default file
// in the repository root.
func resolveConfigPath(repo, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(repo, config.DefaultFileName)
}

// newApp loads the configuration for dir and builds the guard. History is
// opened only when withHistory is set; failing to open it is a warning.
func newApp(ctx context.Context, dir, cfgPath string, withHistory bool) (*app, error) {
	g, err := git.NewGit(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := g.RepoRoot(ctx, dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(resolveConfigPath(repo, cfgPath))
	if err != nil {
		return nil, err
	}

	gen, err := generator.New(repo, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, repo: repo, git: g, gen: gen, log: slog.Default()}
	if withHistory && cfg.HistoryPath != "" {
		a.store = openHistory(ctx, g, repo, cfg.HistoryPath, a.log)
	}

	var rec events.Recorder = events.Discard
	if a.store != nil {
		rec = a.store
	}
	a.guard, err = guard.New(&guard.Config{
		Settings:  cfg,
		RepoPath:  repo,
		Git:       g,
		Generator: gen,
		Recorder:  rec,
		Logger:    a.log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// historyFile resolves a relative history path inside the git directory so
// the database never shows up as an untracked file.
func historyFile(ctx context.Context, g *git.Git, repo, historyPath string) (string, error) {
	if filepath.IsAbs(historyPath) {
		return historyPath, nil
	}
	return g.GitPath(ctx, repo, filepath.ToSlash(historyPath))
}

func openHistory(ctx context.Context, g *git.Git, repo, historyPath string, log *slog.Logger) storage.Storage {
	path, err := historyFile(ctx, g, repo, historyPath)
	if err != nil {
		log.Warn("run history disabled", "path", historyPath, "error", err)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Warn("run history disabled", "path", path, "error", err)
		return nil
	}
	store, err := storage.NewStorage(ctx, &storage.Config{Path: path})
	if err != nil {
		log.Warn("run history disabled", "path", path, "error", err)
		return nil
	}
	return store
}

// Close releases the history database.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close run history", "error", err)
	}
}

// startRun records the start of a guard run. The returned run is never nil.
func (a *app) startRun(ctx context.Context, mode types.RunMode) *types.Run {
	run := &types.Run{ID: guard.NewRunID(), Mode: mode, StartedAt: time.Now()}
	if a.store == nil {
		return run
	}
	if err := a.store.StartRun(ctx, run); err != nil {
		a.log.Warn("failed to record run", "error", err)
		a.store.Close()
		a.store = nil
	}
	return run
}

// finishRun records the outcome of run and prunes old history.
func (a *app) finishRun(ctx context.Context, run *types.Run, res *guard.Result, runErr error) {
	if res != nil {
		run.Head = res.Head
		run.Action = string(res.Decision.Action)
		run.Reason = res.Decision.Reason
		run.Changed = res.Changed
		run.CommitHash = res.Commit
		run.Pushed = res.Pushed
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	now := time.Now()
	run.FinishedAt = &now

	if a.store == nil {
		return
	}
	// A cancelled run is still recorded
	ctx = context.WithoutCancel(ctx)
	if err := a.store.FinishRun(ctx, run); err != nil {
		a.log.Warn("failed to record run outcome", "run", run.ID, "error", err)
		return
	}
	if n, err := a.store.PruneRuns(ctx, a.cfg.Retention.Keep); err != nil {
		a.log.Warn("failed to prune run history", "error", err)
	} else if n > 0 {
		a.log.Debug("pruned run history", "deleted", n, "kept", a.cfg.Retention.Keep)
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
