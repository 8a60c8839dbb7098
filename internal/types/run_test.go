package types

import (
	"testing"
	"time"
)

func TestRunValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		run     Run
		wantErr bool
	}{
		{"valid", Run{ID: "r1", Mode: RunModeCI, StartedAt: now}, false},
		{"missing id", Run{Mode: RunModeCI, StartedAt: now}, true},
		{"bad mode", Run{ID: "r1", Mode: "deploy", StartedAt: now}, true},
		{"missing start", Run{ID: "r1", Mode: RunModeCheck}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunSucceededAndDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	run := Run{ID: "r1", Mode: RunModeSync, StartedAt: start}

	if run.Succeeded() {
		t.Error("unfinished run should not count as succeeded")
	}
	if run.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0", run.Duration())
	}

	end := start.Add(3 * time.Second)
	run.FinishedAt = &end
	if !run.Succeeded() {
		t.Error("finished run without error should succeed")
	}
	if run.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", run.Duration())
	}

	run.Error = "push rejected"
	if run.Succeeded() {
		t.Error("run with error should not succeed")
	}
}
