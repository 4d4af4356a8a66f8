// Package progress delivers orchestrator events to the caller.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/sheetfix/internal/core/domain"
)

// Sink receives progress events. Emit must not block for long; the
// orchestrator calls it inline.
type Sink interface {
	Emit(event domain.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event domain.Event)

func (f SinkFunc) Emit(event domain.Event) { f(event) }

// Nop discards every event.
var Nop Sink = SinkFunc(func(domain.Event) {})

// LogSink writes events to slog.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Emit(e domain.Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch e.Kind {
	case domain.EventProgress:
		logger.Debug("Progress", "percent", e.Percent, "message", e.Message)
	case domain.EventWarning:
		logger.Warn(e.Message)
	case domain.EventError:
		logger.Error(e.Message)
	case domain.EventSuccess:
		logger.Info("Processing succeeded", "output", e.OutputPath)
	case domain.EventDone:
		logger.Debug("Job done")
	default:
		logger.Info(e.Message)
	}
}

// Multi fans events out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e domain.Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Emit(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Kinds returns the recorded event kinds in emission order.
func (r *Recorder) Kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// DefaultBuffer is the channel capacity used by Go when buffer <= 0.
const DefaultBuffer = 64

// Job is a unit of work reporting through sink.
type Job func(ctx context.Context, sink Sink)

// Go runs job on a new goroutine and returns the channel its events arrive on.
// A done event is always sent last, then the channel is closed. The consumer
// must drain the channel until it is closed.
func Go(ctx context.Context, buffer int, job Job) <-chan domain.Event {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan domain.Event, buffer)
	sink := SinkFunc(func(e domain.Event) { ch <- e })

	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Job panicked", "panic", r)
				ch <- domain.ErrorEvent(fmt.Sprintf("job panicked: %v", r))
			}
			ch <- domain.DoneEvent()
		}()
		job(ctx, sink)
	}()
	return ch
}

// Drain forwards every event from ch to sink until the channel closes and
// returns the last success or error event seen.
func Drain(ch <-chan domain.Event, sink Sink) domain.Event {
	var outcome domain.Event
	for e := range ch {
		if e.Kind == domain.EventSuccess || e.Kind == domain.EventError {
			outcome = e
		}
		if sink != nil {
			sink.Emit(e)
		}
	}
	return outcome
}
