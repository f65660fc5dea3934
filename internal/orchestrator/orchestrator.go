package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/internal/audit"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// ErrAlreadyRunning is returned by Run when the orchestrator is already running.
var ErrAlreadyRunning = errors.New("orchestrator already running")

// Orchestrator wires the registry, the decision queue and the audit sink.
type Orchestrator struct {
	registry *Registry
	queue    *DecisionQueue
	sink     audit.Sink
	emitter  *EventEmitter
	logger   *DebugLogger

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an orchestrator. Agents may be registered before or after Run.
func New(cfg RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = audit.NewMemorySink()
	}

	orch := &Orchestrator{
		sink:    sink,
		emitter: NewEventEmitter(o.eventBuffer),
		logger:  o.logger,
	}
	if orch.logger == nil {
		orch.logger = NopLogger()
	}
	setPackageLogger(orch.logger)

	orch.registry = NewRegistry(RegistryHandlers{
		OnDecisionRequest: orch.submit,
		OnReport:          orch.writeReport,
		OnStatus:          orch.statusChanged,
	})
	orch.queue = NewDecisionQueue(orch.registry, sink, o.queueConfig)
	orch.queue.emitter = orch.emitter
	if o.route != nil {
		orch.queue.SetRouter(o.route)
	}
	return orch
}

// Registry returns the agent registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Queue returns the decision queue.
func (o *Orchestrator) Queue() *DecisionQueue {
	return o.queue
}

// Sink returns the audit sink.
func (o *Orchestrator) Sink() audit.Sink {
	return o.sink
}

// Events returns a read-only channel of orchestrator events.
// The channel is closed by Stop.
func (o *Orchestrator) Events() <-chan OrchestratorEvent {
	return o.emitter.Events()
}

// DroppedEvents returns how many orchestrator events were dropped on a full channel.
func (o *Orchestrator) DroppedEvents() uint64 {
	return o.emitter.DroppedCount()
}

// Register adds or replaces an agent.
func (o *Orchestrator) Register(a *agent.Agent) {
	o.registry.Register(a)
	o.emitter.Emit(OrchestratorEvent{
		Type:      EventAgentRegistered,
		AgentID:   a.ID(),
		Message:   a.Type(),
		Timestamp: time.Now(),
	})
}

// Submit enqueues a request that did not come from a registered agent's
// event channel, for example one built by the CLI.
func (o *Orchestrator) Submit(req *models.DecisionRequest) error {
	return o.queue.Enqueue(req)
}

// Drain resolves everything currently queued and returns the count.
func (o *Orchestrator) Drain(ctx context.Context) int {
	return o.queue.Drain(ctx)
}

// Pause stops decision resolution after the request in flight.
func (o *Orchestrator) Pause() {
	o.queue.Pause()
}

// Resume restarts decision resolution.
func (o *Orchestrator) Resume() {
	o.queue.Resume()
}

// IsPaused returns whether decision resolution is paused.
func (o *Orchestrator) IsPaused() bool {
	return o.queue.Paused()
}

// Agents returns snapshots of all registered agents in registration order.
func (o *Orchestrator) Agents() []models.AgentInfo {
	entries := o.registry.Entries()
	infos := make([]models.AgentInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.Agent.Info())
	}
	return infos
}

// Run processes decisions until ctx is done or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	if o.stopped {
		o.mu.Unlock()
		return ErrQueueStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	defer close(done)
	defer cancel()

	o.logger.Log("[orchestrator] decision loop started (%d agents)", o.registry.Count())
	err := o.queue.Run(ctx)
	o.logger.Log("[orchestrator] decision loop stopped (%+v)", o.queue.Stats())
	return err
}

// Stop signals the orchestrator to stop and releases its goroutines.
// Requests still queued remain pending.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	cancel, done := o.cancel, o.done
	o.mu.Unlock()

	o.queue.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
	o.registry.Close()
	o.emitter.Close()
	return nil
}

// submit receives decision requests forwarded by the registry.
func (o *Orchestrator) submit(req *models.DecisionRequest) {
	if err := o.queue.Enqueue(req); err != nil {
		log.Printf("[orchestrator] WARNING: dropped decision request: %v", err)
	}
}

// writeReport persists a report forwarded by the registry.
func (o *Orchestrator) writeReport(r models.Report) {
	if err := o.sink.WriteReport(r); err != nil {
		log.Printf("[orchestrator] WARNING: failed to write report %s from %s: %v", r.ID, r.AgentID, err)
		o.emitter.Emit(OrchestratorEvent{
			Type:      EventAuditFailed,
			AgentID:   r.AgentID,
			Error:     err,
			Timestamp: time.Now(),
		})
		return
	}
	o.emitter.Emit(OrchestratorEvent{
		Type:      EventReportWritten,
		AgentID:   r.AgentID,
		Message:   r.Type,
		Timestamp: time.Now(),
	})
}

// statusChanged republishes agent status changes.
func (o *Orchestrator) statusChanged(agentID string, from, to models.AgentStatus) {
	debugLog("[registry] %s: %s -> %s", agentID, from, to)
	o.emitter.Emit(OrchestratorEvent{
		Type:      EventAgentStatus,
		AgentID:   agentID,
		Message:   string(from) + " -> " + string(to),
		Timestamp: time.Now(),
	})
}
