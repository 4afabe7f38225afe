package agent

import "time"

// EventType identifies a progress event emitted during a run.
type EventType string

const (
	EventToolsListed   EventType = "tools.listed"
	EventTurnStarted   EventType = "turn.started"
	EventToolCalled    EventType = "tool.called"
	EventToolCompleted EventType = "tool.completed"
	EventRunCompleted  EventType = "run.completed"
)

// Event is a progress notification. Observers must not block: they run on
// the agent loop's goroutine.
type Event struct {
	Type     EventType
	Time     time.Time
	Turn     int
	Tool     string        // tool name for tool events
	Count    int           // number of tools for tools.listed
	IsError  bool          // tool.completed: the tool reported a failure
	Duration time.Duration // tool.completed: call latency
}
