package types

import (
	"fmt"
	"time"
)

// RunMode identifies which command started a guard run
type RunMode string

const (
	RunModeCheck RunMode = "check"
	RunModeSync  RunMode = "sync"
	RunModeCI    RunMode = "ci"
)

// Run is one recorded guard invocation
type Run struct {
	ID         string     `json:"id"`
	Mode       RunMode    `json:"mode"`
	Head       string     `json:"head,omitempty"`
	Action     string     `json:"action,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Changed    bool       `json:"changed"`
	CommitHash string     `json:"commit_hash,omitempty"`
	Pushed     bool       `json:"pushed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Validate checks if the run has valid field values
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	switch r.Mode {
	case RunModeCheck, RunModeSync, RunModeCI:
	default:
		return fmt.Errorf("invalid run mode %q", r.Mode)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	return nil
}

// Succeeded reports whether a finished run ended without error
func (r *Run) Succeeded() bool {
	return r.FinishedAt != nil && r.Error == ""
}

// Duration returns how long a finished run took, or zero
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunEvent is a stored guard lifecycle event
type RunEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
