package agent

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/boardroom/pkg/models"
)

// EventType represents the type of event an agent emits.
type EventType string

const (
	// EventStatusChanged is emitted on every status transition.
	EventStatusChanged EventType = "status_changed"
	// EventDecisionRequested carries a new pending decision request.
	EventDecisionRequested EventType = "decision_requested"
	// EventDecisionHandled is emitted after a resolved or failed request is delivered back.
	EventDecisionHandled EventType = "decision_handled"
	// EventReport carries a report for the audit trail.
	EventReport EventType = "report"
)

// Event is a message on an agent's outbound channel.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// AgentID is the emitting agent.
	AgentID string
	// From is the previous status (status events only).
	From models.AgentStatus
	// To is the new status (status events only).
	To models.AgentStatus
	// Decision is set for decision events.
	Decision *models.DecisionRequest
	// Report is set for report events.
	Report *models.Report
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// dropTimeout bounds how long Emit waits on a full channel.
const dropTimeout = 100 * time.Millisecond

// EventEmitter owns an agent's outbound event channel.
// There is exactly one consumer: whatever registered the agent.
type EventEmitter struct {
	events       chan Event
	done         chan struct{}
	closeOnce    sync.Once
	mu           sync.RWMutex
	closed       bool
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Emit sends an event, giving the consumer a short grace period when the
// channel is full before dropping it. Used for status events, where the next
// transition supersedes a lost one.
func (e *EventEmitter) Emit(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(dropTimeout)
	defer timer.Stop()
	select {
	case e.events <- event:
	case <-e.done:
	case <-timer.C:
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[agent] WARNING: event channel full for %s, dropped event (total dropped: %d): type=%s", event.AgentID, count, event.Type)
		}
	}
}

// EmitBlocking sends an event and waits for buffer space. It returns false
// only if the emitter was closed first. Decision requests and reports use it
// because losing them would lose work.
func (e *EventEmitter) EmitBlocking(event Event) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}

	select {
	case e.events <- event:
		return true
	case <-e.done:
		return false
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close unblocks pending senders and closes the channel.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
	})
}
