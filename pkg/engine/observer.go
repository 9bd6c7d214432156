package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType classifies run events for filtering and routing.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeExit    EventType = "node_exit"
	EventTransition  EventType = "transition"
	EventRunComplete EventType = "run_complete"
	EventRunError    EventType = "run_error"
)

// Event is a single observation from a run. Response is set on node exit.
type Event struct {
	Type     EventType
	Task     string
	TaskID   string
	Node     string
	Next     string
	ExitCode ExitCode
	Retry    bool
	Elapsed  time.Duration
	Response *NodeResponse
	Error    error
}

// Observer receives events during a run. Observers are called synchronously
// from the run loop and must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, obs := range m {
		if obs != nil {
			obs.OnEvent(e)
		}
	}
}

// LogObserver writes run events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("event", string(e.Type)),
		slog.String("task", e.Task),
		slog.String("task_id", e.TaskID),
	}
	if e.Node != "" {
		attrs = append(attrs, slog.String("node", e.Node))
	}
	if e.Type == EventNodeExit || e.Type == EventTransition {
		attrs = append(attrs, slog.Int("exit_code", int(e.ExitCode)))
	}
	if e.Next != "" {
		attrs = append(attrs, slog.String("next", e.Next), slog.Bool("retry", e.Retry))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}

	level := slog.LevelDebug
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
		level = slog.LevelWarn
	}
	logger.LogAttrs(context.Background(), level, "[Engine] run", attrs...)
}

// TraceCollector accumulates events in memory. Safe for concurrent use.
type TraceCollector struct {
	mu     sync.Mutex
	events []Event
}

func (t *TraceCollector) OnEvent(e Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of all collected events.
func (t *TraceCollector) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// EventsOfType returns only events matching the given type.
func (t *TraceCollector) EventsOfType(typ EventType) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Event
	for _, e := range t.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func emitEvent(obs Observer, e Event) {
	if obs != nil {
		obs.OnEvent(e)
	}
}
