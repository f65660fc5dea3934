// Package agent implements the typed workers that resolve decisions and run tasks.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/ShayCichocki/boardroom/internal/skills"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// Common errors for agent lifecycle management.
var (
	// ErrAgentOffline indicates the agent refuses work until brought back online.
	ErrAgentOffline = errors.New("agent is offline")
	// ErrInvalidTransition indicates an invalid status transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrBehaviorPanic wraps a panic recovered from a Behavior.
	ErrBehaviorPanic = errors.New("agent behavior panicked")
)

// Behavior is the domain logic behind an agent type.
type Behavior interface {
	// ProcessDecision resolves a decision request and returns its result.
	ProcessDecision(ctx context.Context, req *models.DecisionRequest) (any, error)
	// PerformTask executes a task and returns its result.
	PerformTask(ctx context.Context, task *models.Task) (any, error)
}

// DecisionHandler is optionally implemented by a Behavior that wants to act
// on the outcome of decisions its agent requested.
type DecisionHandler interface {
	HandleDecision(ctx context.Context, req *models.DecisionRequest)
}

// Definition is the static identity of an agent.
type Definition struct {
	// ID is the unique identifier for this agent.
	ID string `yaml:"id" json:"id"`
	// Type is the category tag used for routing (e.g. "CFO").
	Type string `yaml:"type" json:"type"`
	// Name is the human readable name.
	Name string `yaml:"name" json:"name"`
	// Capabilities is an ordered list of capability tags.
	Capabilities []string `yaml:"capabilities" json:"capabilities,omitempty"`
	// Tools is an ordered list of usable tool tags.
	Tools []string `yaml:"tools" json:"tools,omitempty"`
	// Offline registers the agent in the offline state.
	Offline bool `yaml:"offline" json:"offline,omitempty"`
}

// Validate checks the required fields.
func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.New("agent definition: id is required")
	}
	if d.Type == "" {
		return fmt.Errorf("agent definition %s: type is required", d.ID)
	}
	return nil
}

// validTransitions defines the allowed status transitions.
// Key is the current status, value is the set of valid target statuses.
var validTransitions = map[models.AgentStatus]map[models.AgentStatus]bool{
	models.AgentStatusIdle: {
		models.AgentStatusDeciding: true,
		models.AgentStatusWorking:  true,
		models.AgentStatusError:    true,
		models.AgentStatusOffline:  true,
	},
	models.AgentStatusDeciding: {
		models.AgentStatusIdle:    true,
		models.AgentStatusError:   true,
		models.AgentStatusWorking: true,
		models.AgentStatusOffline: true,
	},
	models.AgentStatusWorking: {
		models.AgentStatusIdle:     true,
		models.AgentStatusError:    true,
		models.AgentStatusDeciding: true,
		models.AgentStatusOffline:  true,
	},
	models.AgentStatusError: {
		models.AgentStatusIdle:     true,
		models.AgentStatusDeciding: true,
		models.AgentStatusWorking:  true,
		models.AgentStatusOffline:  true,
	},
	// Offline agents only come back through SetOnline.
	models.AgentStatusOffline: {
		models.AgentStatusIdle: true,
	},
}

// CanTransition checks if a status transition is valid.
func CanTransition(from, to models.AgentStatus) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Option configures an Agent.
type Option func(*Agent)

// WithSkills sets the agent's rules.
func WithSkills(s *skills.Skills) Option {
	return func(a *Agent) { a.skills = s }
}

// WithEventBuffer sets the outbound event channel capacity.
func WithEventBuffer(n int) Option {
	return func(a *Agent) { a.events = NewEventEmitter(n) }
}

// Agent is a typed worker. Its status and metrics are only mutated by its own
// methods; observers learn about changes through Events.
type Agent struct {
	def      Definition
	behavior Behavior
	events   *EventEmitter

	mu      sync.RWMutex
	status  models.AgentStatus
	metrics models.AgentMetrics
	skills  *skills.Skills
}

// New creates an agent in the idle state, or offline if the definition says so.
func New(def Definition, behavior Behavior, opts ...Option) *Agent {
	if def.Name == "" {
		def.Name = def.Type + " Agent"
	}
	a := &Agent{
		def:      def,
		behavior: behavior,
		status:   models.AgentStatusIdle,
	}
	if def.Offline {
		a.status = models.AgentStatusOffline
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.events == nil {
		a.events = NewEventEmitter(100)
	}
	if a.skills == nil {
		a.skills = &skills.Skills{}
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.def.ID }

// Type returns the agent's routing category.
func (a *Agent) Type() string { return a.def.Type }

// Name returns the human readable name.
func (a *Agent) Name() string { return a.def.Name }

// Definition returns a copy of the static identity.
func (a *Agent) Definition() Definition {
	d := a.def
	d.Capabilities = append([]string(nil), a.def.Capabilities...)
	d.Tools = append([]string(nil), a.def.Tools...)
	return d
}

// Status returns the current status.
func (a *Agent) Status() models.AgentStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Metrics returns a copy of the metrics.
func (a *Agent) Metrics() models.AgentMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}

// Info returns a snapshot of identity, status and metrics.
func (a *Agent) Info() models.AgentInfo {
	d := a.Definition()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return models.AgentInfo{
		ID:           d.ID,
		Type:         d.Type,
		Name:         d.Name,
		Capabilities: d.Capabilities,
		Tools:        d.Tools,
		Status:       a.status,
		Metrics:      a.metrics,
	}
}

// Events returns the agent's outbound event channel.
func (a *Agent) Events() <-chan Event {
	return a.events.Events()
}

// DroppedEvents returns how many status events were dropped on a full channel.
func (a *Agent) DroppedEvents() uint64 {
	return a.events.DroppedCount()
}

// Close closes the event channel. The agent must not be used afterwards.
func (a *Agent) Close() {
	a.events.Close()
}

// SetSkills replaces the agent's rules.
func (a *Agent) SetSkills(s *skills.Skills) {
	if s == nil {
		s = &skills.Skills{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skills = s
}

// Skills returns the agent's current rules.
func (a *Agent) Skills() *skills.Skills {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.skills
}

// SetOffline takes the agent out of routing.
func (a *Agent) SetOffline() error {
	return a.transition(models.AgentStatusOffline)
}

// SetOnline returns an offline agent to idle. It is a no-op for online agents.
func (a *Agent) SetOnline() error {
	if a.Status() != models.AgentStatusOffline {
		return nil
	}
	return a.transition(models.AgentStatusIdle)
}

// transition moves the agent to a new status and emits a status event.
// Same-status transitions are silent no-ops.
func (a *Agent) transition(to models.AgentStatus) error {
	return a.transitionFrom(to, false)
}

// transitionFrom is transition with an optional stay-offline check made under
// the same lock as the status change.
func (a *Agent) transitionFrom(to models.AgentStatus, keepOffline bool) error {
	a.mu.Lock()
	from := a.status
	if from == to || (keepOffline && from == models.AgentStatusOffline) {
		a.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		a.mu.Unlock()
		if from == models.AgentStatusOffline {
			return fmt.Errorf("agent %s: %w", a.def.ID, ErrAgentOffline)
		}
		return fmt.Errorf("agent %s: %w: %s -> %s", a.def.ID, ErrInvalidTransition, from, to)
	}
	a.status = to
	a.mu.Unlock()

	a.events.Emit(Event{
		Type:      EventStatusChanged,
		AgentID:   a.def.ID,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	})
	return nil
}

// settle ends a decision or task. An agent taken offline mid-call stays offline.
func (a *Agent) settle(to models.AgentStatus) {
	if err := a.transitionFrom(to, true); err != nil {
		log.Printf("[agent] %v", err)
	}
}

// invoke runs fn and converts a panic into an error.
func invoke(fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrBehaviorPanic, r)
		}
	}()
	return fn()
}

// MakeDecision resolves req with the agent's behavior. The agent is in the
// deciding status for the duration of the call and is idle or error when it
// returns. Behavior errors are returned to the caller unchanged.
func (a *Agent) MakeDecision(ctx context.Context, req *models.DecisionRequest) (any, error) {
	if err := a.transition(models.AgentStatusDeciding); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := invoke(func() (any, error) {
		return a.behavior.ProcessDecision(ctx, req)
	})
	elapsed := time.Since(start)

	a.mu.Lock()
	if err != nil {
		a.metrics.ErrorsEncountered++
	} else {
		a.metrics.DecisionsMade++
		n := time.Duration(a.metrics.DecisionsMade)
		a.metrics.AverageResponseTime = (a.metrics.AverageResponseTime*(n-1) + elapsed) / n
	}
	a.mu.Unlock()

	if err != nil {
		a.settle(models.AgentStatusError)
		return nil, err
	}
	a.settle(models.AgentStatusIdle)
	return result, nil
}

// ExecuteTask runs task with the agent's behavior. Same status contract as
// MakeDecision, using the working status.
func (a *Agent) ExecuteTask(ctx context.Context, task *models.Task) (any, error) {
	if err := a.transition(models.AgentStatusWorking); err != nil {
		return nil, err
	}

	result, err := invoke(func() (any, error) {
		return a.behavior.PerformTask(ctx, task)
	})

	a.mu.Lock()
	if err != nil {
		a.metrics.ErrorsEncountered++
	} else {
		a.metrics.TasksCompleted++
	}
	a.mu.Unlock()

	if err != nil {
		a.settle(models.AgentStatusError)
		return nil, err
	}
	a.settle(models.AgentStatusIdle)
	return result, nil
}

// RequestOption configures a decision request.
type RequestOption func(*models.DecisionRequest)

// WithPriority sets the advisory priority label.
func WithPriority(p models.Priority) RequestOption {
	return func(r *models.DecisionRequest) { r.Priority = p }
}

// WithTimeout sets the resolution timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *models.DecisionRequest) { r.Timeout = d }
}

// NewDecisionID returns a time-ordered, collision resistant identifier.
func NewDecisionID() string {
	return ulid.Make().String()
}

// RequestDecision creates a pending request and emits it. It returns as soon
// as the event is buffered; the outcome arrives later through HandleDecision.
// The returned value is a snapshot; the orchestrator owns the live request.
func (a *Agent) RequestDecision(decisionType string, data map[string]any, opts ...RequestOption) *models.DecisionRequest {
	req := &models.DecisionRequest{
		ID:          NewDecisionID(),
		Type:        decisionType,
		Data:        data,
		RequesterID: a.def.ID,
		CreatedAt:   time.Now(),
		Priority:    models.PriorityMedium,
		Timeout:     models.DefaultDecisionTimeout,
		Status:      models.DecisionStatusPending,
	}
	for _, opt := range opts {
		opt(req)
	}

	snapshot := *req
	if !a.events.EmitBlocking(Event{
		Type:      EventDecisionRequested,
		AgentID:   a.def.ID,
		Decision:  req,
		Timestamp: req.CreatedAt,
	}) {
		log.Printf("[agent] %s closed, decision request %s (%s) not delivered", a.def.ID, req.ID, decisionType)
	}
	return &snapshot
}

// HandleDecision receives the outcome of a request this agent made.
func (a *Agent) HandleDecision(ctx context.Context, req *models.DecisionRequest) {
	if req.Status == models.DecisionStatusFailed {
		log.Printf("[agent] %s: decision %s (%s) failed: %s", a.def.ID, req.ID, req.Type, req.Error)
	} else {
		log.Printf("[agent] %s: decision %s (%s) %s by %s", a.def.ID, req.ID, req.Type, req.Status, req.DecisionMaker)
	}

	snapshot := *req
	a.events.Emit(Event{
		Type:      EventDecisionHandled,
		AgentID:   a.def.ID,
		Decision:  &snapshot,
		Timestamp: time.Now(),
	})

	if h, ok := a.behavior.(DecisionHandler); ok {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[agent] %s: decision handler panicked: %v", a.def.ID, r)
				}
			}()
			h.HandleDecision(ctx, &snapshot)
		}()
	}
}

// Report emits a report for the audit trail and returns it.
func (a *Agent) Report(reportType, content string, metadata map[string]any) models.Report {
	r := models.Report{
		ID:        uuid.New().String(),
		AgentID:   a.def.ID,
		AgentName: a.def.Name,
		Type:      reportType,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	rc := r
	if !a.events.EmitBlocking(Event{
		Type:      EventReport,
		AgentID:   a.def.ID,
		Report:    &rc,
		Timestamp: r.CreatedAt,
	}) {
		log.Printf("[agent] %s closed, report %s not delivered", a.def.ID, r.ID)
	}
	return r
}

// ValidationResult is the outcome of ValidateAction.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Rule   string `json:"rule,omitempty"`
}

// ValidateAction checks a proposed action against the agent's never-rules.
// The result is advice; nothing enforces it.
func (a *Agent) ValidateAction(action string) ValidationResult {
	if v := a.Skills().Check(action); v != nil {
		return ValidationResult{Valid: false, Reason: v.Reason, Rule: v.Rule}
	}
	return ValidationResult{Valid: true}
}
