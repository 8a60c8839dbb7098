package events

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	before := time.Now()
	e := New("run-1", EventTypeCommitted, "abc123")

	if e.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", e.RunID)
	}
	if e.Type != EventTypeCommitted {
		t.Errorf("Type = %q, want %q", e.Type, EventTypeCommitted)
	}
	if e.Message != "abc123" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.Timestamp.Before(before) {
		t.Error("Timestamp should not precede creation")
	}
}

func TestDiscard(t *testing.T) {
	if err := Discard.Record(context.Background(), New("r", EventTypeSkipped, "")); err != nil {
		t.Errorf("Discard.Record returned %v", err)
	}
}
