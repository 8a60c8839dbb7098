package events

import (
	"context"
	"time"
)

// EventType represents a step in a guard run.
type EventType string

const (
	// EventTypeRunStarted indicates a guard run began
	EventTypeRunStarted EventType = "run_started"
	// EventTypeChangesInspected indicates the triggering commit was read
	EventTypeChangesInspected EventType = "changes_inspected"
	// EventTypeDirectEdit indicates the target was edited without its source
	EventTypeDirectEdit EventType = "direct_edit_detected"
	// EventTypeSkipped indicates nothing needed to happen
	EventTypeSkipped EventType = "skipped"
	// EventTypeRegenerated indicates the generator ran
	EventTypeRegenerated EventType = "regenerated"
	// EventTypeUnchanged indicates regeneration produced identical output
	EventTypeUnchanged EventType = "unchanged"
	// EventTypeCommitted indicates an auto-sync commit was created
	EventTypeCommitted EventType = "committed"
	// EventTypePushed indicates the auto-sync commit was pushed
	EventTypePushed EventType = "pushed"
	// EventTypeRunFailed indicates the run ended with an error
	EventTypeRunFailed EventType = "run_failed"
)

// Event is a single guard lifecycle event.
type Event struct {
	RunID     string
	Type      EventType
	Message   string
	Timestamp time.Time
}

// Recorder receives guard events. Implementations must not block the guard
// on failure; errors are reported back so the caller can log them.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) error { return nil }

// New builds an event stamped with the current time.
func New(runID string, typ EventType, message string) Event {
	return Event{
		RunID:     runID,
		Type:      typ,
		Message:   message,
		Timestamp: time.Now(),
	}
}
