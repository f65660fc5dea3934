package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/internal/audit"
	"github.com/ShayCichocki/boardroom/internal/router"
	"github.com/ShayCichocki/boardroom/internal/tracing"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// Decision queue errors.
var (
	// ErrNoAgentAvailable is recorded when no live agent of the routed type is registered.
	ErrNoAgentAvailable = errors.New("No agent available to handle decision type")
	// ErrTerminalRequest is returned when a resolved or failed request is enqueued.
	ErrTerminalRequest = errors.New("decision request is already terminal")
	// ErrQueueStopped is returned by Enqueue after the queue was stopped.
	ErrQueueStopped = errors.New("decision queue stopped")
	// ErrDecisionTimeout is recorded when an agent answers after the request's deadline.
	ErrDecisionTimeout = errors.New("decision timed out")
)

// AgentDirectory is the subset of the registry the queue needs.
type AgentDirectory interface {
	// LookupByType returns a live agent of the given type.
	LookupByType(agentType string) (Entry, bool)
	// Get returns the entry for an agent ID.
	Get(agentID string) (Entry, bool)
}

// DecisionQueueConfig contains configuration for the decision queue.
type DecisionQueueConfig struct {
	// PollInterval is how often the worker checks for work it was not woken for.
	PollInterval time.Duration
	// EnforceTimeout bounds each resolution by the request's Timeout.
	EnforceTimeout bool
	// DefaultTimeout applies to requests without a Timeout.
	DefaultTimeout time.Duration
}

// DefaultDecisionQueueConfig returns sensible defaults.
func DefaultDecisionQueueConfig() DecisionQueueConfig {
	return DecisionQueueConfig{
		PollInterval:   time.Second,
		EnforceTimeout: true,
		DefaultTimeout: models.DefaultDecisionTimeout,
	}
}

// DecisionQueueStats tracks decision queue statistics.
type DecisionQueueStats struct {
	// Total is the number of requests processed.
	Total int
	// Resolved is the number of requests an agent resolved.
	Resolved int
	// Failed is the number of requests that failed routing or resolution.
	Failed int
}

// DecisionQueue serializes decision resolution. Any number of goroutines may
// enqueue; a single drain loop resolves one request at a time in FIFO order.
type DecisionQueue struct {
	// mu protects items, draining, paused, stopped and stats.
	mu       sync.Mutex
	items    []*models.DecisionRequest
	draining bool
	paused   bool
	stopped  bool
	stats    DecisionQueueStats

	// wake has capacity one so Enqueue never blocks.
	wake chan struct{}

	agents AgentDirectory
	route  func(decisionType string) string
	sink   audit.Sink
	config DecisionQueueConfig
	// eventCh receives queue events. May be nil.
	eventCh chan<- OrchestratorEvent
	// emitter is used instead of eventCh when set.
	emitter *EventEmitter
}

// NewDecisionQueue creates a queue that routes with router.RouteFor.
func NewDecisionQueue(agents AgentDirectory, sink audit.Sink, config DecisionQueueConfig) *DecisionQueue {
	def := DefaultDecisionQueueConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = def.DefaultTimeout
	}
	if sink == nil {
		sink = audit.NewMemorySink()
	}
	return &DecisionQueue{
		wake:   make(chan struct{}, 1),
		agents: agents,
		route:  router.RouteFor,
		sink:   sink,
		config: config,
	}
}

// SetRouter replaces the routing function. Call before Run.
func (q *DecisionQueue) SetRouter(route func(decisionType string) string) {
	if route != nil {
		q.route = route
	}
}

// SetEventChannel sets a raw channel for queue events. Sends never block.
func (q *DecisionQueue) SetEventChannel(ch chan<- OrchestratorEvent) {
	q.eventCh = ch
}

// Enqueue appends a pending request and wakes the worker if it is idle.
func (q *DecisionQueue) Enqueue(req *models.DecisionRequest) error {
	if req == nil {
		return fmt.Errorf("enqueue: nil request")
	}
	if req.Status.IsTerminal() {
		return fmt.Errorf("enqueue %s: %w", req.ID, ErrTerminalRequest)
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return fmt.Errorf("enqueue %s: %w", req.ID, ErrQueueStopped)
	}
	q.items = append(q.items, req)
	idle := !q.draining
	q.mu.Unlock()

	if idle {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}

	debugLog("[decision-queue] queued %s (%s) from %s", req.ID, req.Type, req.RequesterID)
	q.emitEvent(OrchestratorEvent{
		Type:         EventDecisionQueued,
		DecisionID:   req.ID,
		DecisionType: req.Type,
		RequesterID:  req.RequesterID,
		Timestamp:    time.Now(),
	})
	return nil
}

// Len returns the number of pending requests, not counting one in flight.
func (q *DecisionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Draining reports whether a drain loop is active.
func (q *DecisionQueue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Stats returns a copy of the current statistics.
func (q *DecisionQueue) Stats() DecisionQueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Stop rejects further requests. Pending requests stay pending.
func (q *DecisionQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
}

// Pause stops resolution after the request in flight. Enqueue keeps working.
func (q *DecisionQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.paused {
		q.paused = true
		log.Printf("[decision-queue] paused - %d requests pending", len(q.items))
	}
}

// Resume restarts resolution after Pause.
func (q *DecisionQueue) Resume() {
	q.mu.Lock()
	wasPaused := q.paused
	q.paused = false
	q.mu.Unlock()

	if wasPaused {
		log.Printf("[decision-queue] resumed")
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// Paused reports whether the queue is paused.
func (q *DecisionQueue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Drain resolves queued requests one at a time until the queue is empty,
// the queue is paused or ctx is done, and returns how many it processed.
// If another drain is already active it returns 0 immediately.
func (q *DecisionQueue) Drain(ctx context.Context) int {
	q.mu.Lock()
	if q.draining || q.paused {
		q.mu.Unlock()
		return 0
	}
	q.draining = true
	q.mu.Unlock()

	processed := 0
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.paused || ctx.Err() != nil {
			q.draining = false
			q.mu.Unlock()
			return processed
		}
		req := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		q.processSafely(ctx, req)
		processed++
	}
}

// Run is the worker loop. It drains on every wake and on every poll tick
// that finds work, and returns nil when ctx is done.
func (q *DecisionQueue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	q.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
			q.Drain(ctx)
		case <-ticker.C:
			if q.Len() > 0 {
				q.Drain(ctx)
			}
		}
	}
}

// processSafely processes one request and turns a panic into a failure.
func (q *DecisionQueue) processSafely(ctx context.Context, req *models.DecisionRequest) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[decision-queue] WARNING: panic processing decision %s: %v", req.ID, r)
			if err := req.Fail(req.DecisionMaker, fmt.Errorf("decision processing panicked: %v", r)); err == nil {
				q.record(req, false)
			}
		}
	}()
	q.process(ctx, req)
}

// process routes, resolves, delivers and audits a single request.
func (q *DecisionQueue) process(ctx context.Context, req *models.DecisionRequest) {
	start := time.Now()
	makerType := q.route(req.Type)

	ctx, span := tracing.StartSpan(ctx, "decision.resolve", trace.WithAttributes(
		tracing.StringAttr("decision.id", req.ID),
		tracing.StringAttr("decision.type", req.Type),
		tracing.StringAttr("decision.requester", req.RequesterID),
		tracing.StringAttr("agent.type", makerType),
		tracing.IntAttr("queue.pending", q.Len()),
	))
	defer span.End()

	var (
		result any
		err    error
		maker  string
	)
	entry, found := q.agents.LookupByType(makerType)
	if !found {
		err = fmt.Errorf("%w: %s", ErrNoAgentAvailable, req.Type)
	} else {
		maker = entry.Agent.ID()
		span.SetAttributes(tracing.StringAttr("agent.id", maker))
		result, err = q.resolve(ctx, entry.Agent, req)
	}

	if err != nil {
		_ = req.Fail(maker, err)
		tracing.RecordError(span, err)
		debugLog("[decision-queue] %s (%s) failed: %v", req.ID, req.Type, err)
	} else {
		_ = req.Resolve(maker, result)
		tracing.SetOK(span)
		debugLog("[decision-queue] %s (%s) resolved by %s in %s", req.ID, req.Type, maker, time.Since(start))
	}
	q.record(req, err == nil)

	if requester, ok := q.agents.Get(req.RequesterID); ok {
		requester.Agent.HandleDecision(ctx, req)
	}

	if !found {
		makerType = ""
	}
	duration := time.Since(start)
	if werr := q.sink.WriteDecision(audit.NewDecisionRecord(req, makerType, duration)); werr != nil {
		log.Printf("[decision-queue] WARNING: failed to write audit record for %s: %v", req.ID, werr)
		q.emitEvent(OrchestratorEvent{
			Type:       EventAuditFailed,
			DecisionID: req.ID,
			Error:      werr,
			Timestamp:  time.Now(),
		})
	}

	ev := OrchestratorEvent{
		Type:         EventDecisionResolved,
		DecisionID:   req.ID,
		DecisionType: req.Type,
		AgentID:      maker,
		RequesterID:  req.RequesterID,
		Timestamp:    time.Now(),
		Duration:     duration,
	}
	if req.Status == models.DecisionStatusFailed {
		ev.Type = EventDecisionFailed
		ev.Message = req.Error
		ev.Error = err
	}
	q.emitEvent(ev)
}

// resolve asks the agent for a decision, bounded by the request timeout when
// enforcement is on. The call always runs to completion before returning so
// that no second request starts while the agent is still deciding.
func (q *DecisionQueue) resolve(ctx context.Context, a *agent.Agent, req *models.DecisionRequest) (any, error) {
	if !q.config.EnforceTimeout {
		return a.MakeDecision(ctx, req)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = q.config.DefaultTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.MakeDecision(tctx, req)
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrDecisionTimeout, timeout)
		}
	}
	return result, err
}

// record updates statistics for a terminal request.
func (q *DecisionQueue) record(req *models.DecisionRequest, resolved bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Total++
	if resolved {
		q.stats.Resolved++
	} else {
		q.stats.Failed++
	}
}

// emitEvent sends an event if an emitter or event channel is configured.
func (q *DecisionQueue) emitEvent(event OrchestratorEvent) {
	if q.emitter != nil {
		q.emitter.Emit(event)
		return
	}
	if q.eventCh == nil {
		return
	}
	select {
	case q.eventCh <- event:
	default:
	}
}
