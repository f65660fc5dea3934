package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	defer r.Close()

	cfo := newTestAgent(t, "cfo-1", "CFO", nil)
	r.Register(cfo)

	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	e, ok := r.Get("cfo-1")
	if !ok {
		t.Fatal("expected cfo-1 to be registered")
	}
	if e.Agent != cfo {
		t.Error("entry does not reference the registered agent")
	}
	if e.Status != models.AgentStatusIdle {
		t.Errorf("Status = %s, want idle", e.Status)
	}
	if e.LastActivity.IsZero() || e.RegisteredAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestRegistry_ReplaceKeepsSingleEntry(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	defer r.Close()

	first := newTestAgent(t, "x", "CFO", nil)
	other := newTestAgent(t, "y", "CFO", nil)
	second := newTestAgent(t, "x", "CFO", nil)

	r.Register(first)
	r.Register(other)
	r.Register(second)

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}
	e, _ := r.Get("x")
	if e.Agent != second {
		t.Error("expected the second registration to win")
	}

	entries := r.Entries()
	if entries[0].Agent.ID() != "x" || entries[1].Agent.ID() != "y" {
		t.Errorf("registration order changed: %s, %s", entries[0].Agent.ID(), entries[1].Agent.ID())
	}

	// The first agent is no longer listened to; its events must not reach the mirror.
	if err := first.SetOffline(); err != nil {
		t.Fatalf("SetOffline: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if e, _ := r.Get("x"); e.Status != models.AgentStatusIdle {
		t.Errorf("replaced agent changed mirror to %s", e.Status)
	}

	// The second one is.
	if err := second.SetOffline(); err != nil {
		t.Fatalf("SetOffline: %v", err)
	}
	waitFor(t, time.Second, "mirror offline", func() bool {
		e, _ := r.Get("x")
		return e.Status == models.AgentStatusOffline
	})
}

func TestRegistry_LookupByType(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	defer r.Close()

	c1 := newTestAgent(t, "cfo-1", "CFO", nil)
	c2 := newTestAgent(t, "cfo-2", "CFO", nil)
	r.Register(newTestAgent(t, "cto-1", "CTO", nil))
	r.Register(c1)
	r.Register(c2)

	e, ok := r.LookupByType("CFO")
	if !ok || e.Agent != c1 {
		t.Fatal("expected first registered CFO")
	}

	if err := c1.SetOffline(); err != nil {
		t.Fatalf("SetOffline: %v", err)
	}
	waitFor(t, time.Second, "lookup to skip offline agent", func() bool {
		e, ok := r.LookupByType("CFO")
		return ok && e.Agent == c2
	})

	if err := c1.SetOnline(); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	waitFor(t, time.Second, "lookup to return the first agent again", func() bool {
		e, ok := r.LookupByType("CFO")
		return ok && e.Agent == c1
	})

	if _, ok := r.LookupByType("Legal"); ok {
		t.Error("expected no Legal agent")
	}
	if got := len(r.ByType("CFO")); got != 2 {
		t.Errorf("ByType(CFO) = %d entries, want 2", got)
	}
}

func TestRegistry_UpdateStatusUnknownIsNoop(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	defer r.Close()

	r.UpdateStatus("ghost", models.AgentStatusOffline)

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
	if _, ok := r.Get("ghost"); ok {
		t.Error("UpdateStatus must not create entries")
	}
}

func TestRegistry_StatusMirrorsAgent(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	defer r.Close()

	fail := make(chan struct{})
	a := newTestAgent(t, "ops-1", "COO", agent.FuncBehavior{
		Decide: func(ctx context.Context, req *models.DecisionRequest) (any, error) {
			<-fail
			return nil, errors.New("no")
		},
	})
	r.Register(a)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.MakeDecision(context.Background(), newRequest("operations_planning", "x", nil))
	}()

	waitFor(t, time.Second, "deciding mirror", func() bool {
		e, _ := r.Get("ops-1")
		return e.Status == models.AgentStatusDeciding
	})
	close(fail)
	<-done
	waitFor(t, time.Second, "error mirror", func() bool {
		e, _ := r.Get("ops-1")
		return e.Status == models.AgentStatusError
	})
}

func TestRegistry_ForwardsRequestsAndReports(t *testing.T) {
	requests := make(chan *models.DecisionRequest, 1)
	reports := make(chan models.Report, 1)
	r := NewRegistry(RegistryHandlers{
		OnDecisionRequest: func(req *models.DecisionRequest) { requests <- req },
		OnReport:          func(rep models.Report) { reports <- rep },
	})
	defer r.Close()

	ceo := newTestAgent(t, "ceo-1", "CEO", nil)
	r.Register(ceo)

	snap := ceo.RequestDecision("budget_allocation", map[string]any{"amount": 5000})
	select {
	case got := <-requests:
		if got.ID != snap.ID {
			t.Errorf("forwarded request %s, want %s", got.ID, snap.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("decision request was not forwarded")
	}

	rep := ceo.Report("quarterly", "all good", nil)
	select {
	case got := <-reports:
		if got.ID != rep.ID {
			t.Errorf("forwarded report %s, want %s", got.ID, rep.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("report was not forwarded")
	}
}

func TestRegistry_CloseStopsListeners(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	a := newTestAgent(t, "a", "CEO", nil)
	r.Register(a)

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestRegistry_ReplaceDispatchesBufferedRequests(t *testing.T) {
	const rounds, perRound = 20, 5

	for round := 0; round < rounds; round++ {
		var forwarded atomic.Int32
		gate := make(chan struct{})
		r := NewRegistry(RegistryHandlers{
			OnDecisionRequest: func(req *models.DecisionRequest) { forwarded.Add(1) },
			OnReport:          func(models.Report) { <-gate },
		})

		old := newTestAgent(t, "pm-1", "ProjectManager", nil)
		r.Register(old)

		// Hold the listener inside OnReport while requests pile up behind it.
		old.Report("status", "busy", nil)
		for i := 0; i < perRound; i++ {
			old.RequestDecision("resource_allocation", map[string]any{"n": i})
		}

		replaced := make(chan struct{})
		go func() {
			defer close(replaced)
			r.Register(newTestAgent(t, "pm-1", "ProjectManager", nil))
		}()
		close(gate)

		select {
		case <-replaced:
		case <-time.After(time.Second):
			t.Fatal("Register did not return")
		}
		if got := forwarded.Load(); got != perRound {
			t.Fatalf("round %d: forwarded %d requests, want %d", round, got, perRound)
		}
		r.Close()
	}
}

func TestRegistry_LookupUsesLiveStatusOverStaleMirror(t *testing.T) {
	r := NewRegistry(RegistryHandlers{})
	defer r.Close()

	cfo := newTestAgent(t, "cfo-1", "CFO", nil)
	r.Register(cfo)

	// A lost offline->idle event leaves the mirror behind the agent.
	r.UpdateStatus("cfo-1", models.AgentStatusOffline)

	e, ok := r.LookupByType("CFO")
	if !ok || e.Agent != cfo {
		t.Fatal("expected the idle agent to be routable despite a stale mirror")
	}
	if e.Status != models.AgentStatusIdle {
		t.Errorf("Status = %s, want idle", e.Status)
	}
}
