package editlog

import (
	"sync"
	"time"
)

// EventType names the project mutations that can stale a snapshot.
type EventType string

const (
	EventDocumentChange  EventType = "document_change"
	EventCursorMove      EventType = "cursor_move"
	EventDocumentSwitch  EventType = "document_switch"
	EventOutlineUpdate   EventType = "outline_update"
	EventCharacterUpdate EventType = "character_update"
	EventDocumentReorder EventType = "document_reorder"
	EventForceRefresh    EventType = "force_refresh"
)

// Priority decides whether a drained batch forces a full rebuild, never
// the processing order (strictly FIFO).
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Event is one pending context update. Payload is opaque to the queue.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Priority  Priority    `json:"priority"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent builds an event stamped now with the given priority.
func NewEvent(typ EventType, payload interface{}, priority Priority) Event {
	if priority == "" {
		priority = PriorityNormal
	}
	return Event{Type: typ, Payload: payload, Priority: priority, Timestamp: time.Now()}
}

// Queue is the pending update-event queue. Enqueue never blocks beyond
// the mutex; DrainSnapshot copies and clears atomically, so events
// enqueued during a drain wait for the next one.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends an event in arrival order.
func (q *Queue) Enqueue(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// DrainSnapshot returns the queued events and clears the live queue in
// one step. Returns nil when empty.
func (q *Queue) DrainSnapshot() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	batch := q.events
	q.events = nil
	return batch
}

// HasHighPriority reports whether any event in the batch is high
// priority.
func HasHighPriority(batch []Event) bool {
	for _, e := range batch {
		if e.Priority == PriorityHigh {
			return true
		}
	}
	return false
}
