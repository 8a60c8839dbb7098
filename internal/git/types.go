package git

import (
	"context"
)

// Operations provides the git operations the README guard relies on.
// This interface is designed to be implementation-agnostic,
// allowing for testing with mock implementations.
type Operations interface {
	// HasParent reports whether rev has a parent commit.
	HasParent(ctx context.Context, repoPath, rev string) (bool, error)

	// ChangedFiles lists paths that differ between base and head.
	// An empty base lists the files of head itself (root commit).
	ChangedFiles(ctx context.Context, repoPath, base, head string) ([]string, error)

	// StagedFiles lists paths staged for the next commit.
	StagedFiles(ctx context.Context, repoPath string) ([]string, error)

	// CommitMessage returns the full message of rev.
	CommitMessage(ctx context.Context, repoPath, rev string) (string, error)

	// RevParse resolves rev to a full commit hash.
	RevParse(ctx context.Context, repoPath, rev string) (string, error)

	// CommitChanges creates a commit with the given message.
	// Returns the commit hash if successful.
	CommitChanges(ctx context.Context, repoPath string, opts CommitOptions) (string, error)

	// Push uploads HEAD to the remote branch.
	Push(ctx context.Context, repoPath string, opts PushOptions) error
}

var _ Operations = (*Git)(nil)

// Status represents the git status of a repository.
type Status struct {
	// Modified files (staged or unstaged)
	Modified []string

	// Untracked files
	Untracked []string

	// Deleted files
	Deleted []string

	// Added files (staged)
	Added []string

	// Renamed files (new path)
	Renamed []string

	// HasChanges is true if any changes exist
	HasChanges bool
}

// Touches reports whether path appears anywhere in the status.
func (s *Status) Touches(path string) bool {
	for _, list := range [][]string{s.Modified, s.Untracked, s.Deleted, s.Added, s.Renamed} {
		for _, p := range list {
			if p == path {
				return true
			}
		}
	}
	return false
}

// CommitOptions configures a git commit operation.
type CommitOptions struct {
	// Message is the commit message
	Message string

	// Author specifies the author (optional, uses git config if empty)
	Author string

	// CommitterName and CommitterEmail set the committer identity for this
	// commit only. Both must be set to take effect.
	CommitterName  string
	CommitterEmail string

	// Paths stages and commits only these paths
	Paths []string
}

// PushOptions configures a git push.
type PushOptions struct {
	// Remote defaults to "origin"
	Remote string

	// Branch defaults to the current branch
	Branch string
}
