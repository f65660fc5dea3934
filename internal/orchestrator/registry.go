package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// Entry is the registry's view of one agent.
type Entry struct {
	// Agent is the registered agent. The registry does not own it.
	Agent *agent.Agent
	// Status mirrors the agent's last reported status.
	Status models.AgentStatus
	// LastActivity is when the registry last heard from the agent.
	LastActivity time.Time
	// RegisteredAt is when the agent was first registered under its ID.
	RegisteredAt time.Time
}

// RegistryHandlers receive events the registry forwards from agents.
// Both are called from the agent's listener goroutine and must not block for long.
type RegistryHandlers struct {
	// OnDecisionRequest receives every decision request an agent emits.
	OnDecisionRequest func(req *models.DecisionRequest)
	// OnReport receives every report an agent emits.
	OnReport func(r models.Report)
	// OnStatus is notified after a status change was mirrored.
	OnStatus func(agentID string, from, to models.AgentStatus)
}

// subscription is the single listener attached to an agent's event channel.
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks agents by ID and mirrors their status from their events.
// It is safe for concurrent use.
type Registry struct {
	// regMu serializes Register so an ID never has two listeners.
	regMu sync.Mutex

	// mu protects entries, order and subs.
	mu      sync.RWMutex
	entries map[string]*Entry
	// order holds IDs in first-registration order; lookups scan it.
	order []string
	subs  map[string]*subscription

	handlers RegistryHandlers
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(handlers RegistryHandlers) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		entries:  make(map[string]*Entry),
		subs:     make(map[string]*subscription),
		handlers: handlers,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds an agent and starts listening to its events.
// Registering an ID that is already present stops the previous listener,
// then replaces the entry while keeping its position in lookup order.
func (r *Registry) Register(a *agent.Agent) {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	id := a.ID()

	r.mu.RLock()
	old := r.subs[id]
	r.mu.RUnlock()
	if old != nil {
		old.cancel()
		<-old.done
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(r.ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		e.Agent = a
		e.Status = a.Status()
		e.LastActivity = now
		debugLog("[registry] replaced agent %s (%s)", id, a.Type())
	} else {
		r.entries[id] = &Entry{
			Agent:        a,
			Status:       a.Status(),
			LastActivity: now,
			RegisteredAt: now,
		}
		r.order = append(r.order, id)
		debugLog("[registry] registered agent %s (%s)", id, a.Type())
	}
	r.subs[id] = sub
	r.mu.Unlock()

	r.wg.Add(1)
	go r.listen(ctx, a, sub)
}

// listen consumes one agent's events until cancelled or the channel closes.
func (r *Registry) listen(ctx context.Context, a *agent.Agent, sub *subscription) {
	defer r.wg.Done()
	defer close(sub.done)

	events := a.Events()
	for {
		select {
		case <-ctx.Done():
			r.flush(events)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(ev)
		}
	}
}

// flush dispatches whatever is already buffered on a cancelled listener's
// channel, so requests emitted before a replacement still reach the queue.
func (r *Registry) flush(events <-chan agent.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(ev)
		default:
			return
		}
	}
}

// dispatch routes a single agent event.
func (r *Registry) dispatch(ev agent.Event) {
	switch ev.Type {
	case agent.EventStatusChanged:
		r.UpdateStatus(ev.AgentID, ev.To)
		if r.handlers.OnStatus != nil {
			r.handlers.OnStatus(ev.AgentID, ev.From, ev.To)
		}
	case agent.EventDecisionRequested:
		r.touch(ev.AgentID)
		if ev.Decision != nil && r.handlers.OnDecisionRequest != nil {
			r.handlers.OnDecisionRequest(ev.Decision)
		}
	case agent.EventReport:
		r.touch(ev.AgentID)
		if ev.Report != nil && r.handlers.OnReport != nil {
			r.handlers.OnReport(*ev.Report)
		}
	default:
		r.touch(ev.AgentID)
	}
}

// touch records activity without changing status.
func (r *Registry) touch(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[agentID]; ok {
		e.LastActivity = time.Now()
	}
}

// UpdateStatus sets an agent's mirrored status. Unknown IDs are ignored.
func (r *Registry) UpdateStatus(agentID string, status models.AgentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[agentID]
	if !ok {
		return
	}
	e.Status = status
	e.LastActivity = time.Now()
}

// LookupByType returns the first agent in registration order with the given
// type that is not offline. Availability is read from the agent itself, since
// the mirror can lag or miss a dropped status event.
func (r *Registry) LookupByType(agentType string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		e := r.entries[id]
		if e.Agent.Type() != agentType {
			continue
		}
		if status := e.Agent.Status(); status != models.AgentStatusOffline {
			out := *e
			out.Status = status
			return out, true
		}
	}
	return Entry{}, false
}

// Get returns the entry for an agent ID.
func (r *Registry) Get(agentID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[agentID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// ByType returns copies of all entries of a type, offline ones included.
func (r *Registry) ByType(agentType string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, id := range r.order {
		if e := r.entries[id]; e.Agent.Type() == agentType {
			out = append(out, *e)
		}
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops every listener and waits for them to exit.
// Agents are left open; whoever built them closes them.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}
