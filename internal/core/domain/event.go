package domain

import "time"

// EventKind tags a progress event.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventStatus   EventKind = "status"
	EventWarning  EventKind = "warning"
	EventSuccess  EventKind = "success"
	EventError    EventKind = "error"
	EventDone     EventKind = "done"
)

// Terminal reports whether no outcome events follow this kind.
func (k EventKind) Terminal() bool {
	return k == EventSuccess || k == EventError || k == EventDone
}

// Event is pushed by the orchestrator to a progress sink.
type Event struct {
	Kind       EventKind `json:"kind"`
	Percent    float64   `json:"percent,omitempty"`
	Message    string    `json:"message,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	EmittedAt  time.Time `json:"emitted_at"`
}

func ProgressEvent(percent float64, msg string) Event {
	return Event{Kind: EventProgress, Percent: percent, Message: msg, EmittedAt: time.Now()}
}

func StatusEvent(msg string) Event {
	return Event{Kind: EventStatus, Message: msg, EmittedAt: time.Now()}
}

func WarningEvent(msg string) Event {
	return Event{Kind: EventWarning, Message: msg, EmittedAt: time.Now()}
}

func SuccessEvent(outputPath string) Event {
	return Event{Kind: EventSuccess, OutputPath: outputPath, Message: "output saved to " + outputPath, EmittedAt: time.Now()}
}

func ErrorEvent(msg string) Event {
	return Event{Kind: EventError, Message: msg, EmittedAt: time.Now()}
}

func DoneEvent() Event {
	return Event{Kind: EventDone, EmittedAt: time.Now()}
}
