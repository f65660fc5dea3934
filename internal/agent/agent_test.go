package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/boardroom/internal/skills"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// drain empties the agent's event channel without blocking.
func drain(a *Agent) []Event {
	var out []Event
	for {
		select {
		case ev := <-a.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.AgentStatus
		want     bool
	}{
		{models.AgentStatusIdle, models.AgentStatusDeciding, true},
		{models.AgentStatusDeciding, models.AgentStatusIdle, true},
		{models.AgentStatusDeciding, models.AgentStatusError, true},
		{models.AgentStatusError, models.AgentStatusDeciding, true},
		{models.AgentStatusIdle, models.AgentStatusOffline, true},
		{models.AgentStatusOffline, models.AgentStatusIdle, true},
		{models.AgentStatusOffline, models.AgentStatusDeciding, false},
		{models.AgentStatusOffline, models.AgentStatusWorking, false},
		{models.AgentStatus("bogus"), models.AgentStatusIdle, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	a := New(Definition{ID: "cfo-1", Type: "CFO"}, StubBehavior{AgentType: "CFO"})

	if a.Status() != models.AgentStatusIdle {
		t.Errorf("Status = %q, want idle", a.Status())
	}
	if a.Name() != "CFO Agent" {
		t.Errorf("Name = %q, want %q", a.Name(), "CFO Agent")
	}

	off := New(Definition{ID: "cfo-2", Type: "CFO", Offline: true}, StubBehavior{})
	if off.Status() != models.AgentStatusOffline {
		t.Errorf("offline definition: Status = %q, want offline", off.Status())
	}
}

func TestMakeDecision_StatusRoundTrip(t *testing.T) {
	fail := true
	a := New(Definition{ID: "cto-1", Type: "CTO"}, FuncBehavior{
		Decide: func(ctx context.Context, req *models.DecisionRequest) (any, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return "ok", nil
		},
	})

	_, err := a.MakeDecision(context.Background(), &models.DecisionRequest{ID: "1", Type: "technical_architecture"})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected behavior error to be returned unchanged, got %v", err)
	}
	if a.Status() != models.AgentStatusError {
		t.Errorf("after failure Status = %q, want error", a.Status())
	}

	fail = false
	result, err := a.MakeDecision(context.Background(), &models.DecisionRequest{ID: "2", Type: "technical_architecture"})
	if err != nil {
		t.Fatalf("MakeDecision failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if a.Status() != models.AgentStatusIdle {
		t.Errorf("after success Status = %q, want idle", a.Status())
	}

	m := a.Metrics()
	if m.DecisionsMade != 1 || m.ErrorsEncountered != 1 {
		t.Errorf("metrics = %+v, want 1 decision and 1 error", m)
	}

	events := drain(a)
	var transitions []models.AgentStatus
	for _, ev := range events {
		if ev.Type == EventStatusChanged {
			transitions = append(transitions, ev.To)
		}
	}
	want := []models.AgentStatus{
		models.AgentStatusDeciding, models.AgentStatusError,
		models.AgentStatusDeciding, models.AgentStatusIdle,
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestMakeDecision_RecoversPanic(t *testing.T) {
	a := New(Definition{ID: "x", Type: "CTO"}, FuncBehavior{
		Decide: func(ctx context.Context, req *models.DecisionRequest) (any, error) {
			panic("kaboom")
		},
	})

	_, err := a.MakeDecision(context.Background(), &models.DecisionRequest{ID: "1"})
	if !errors.Is(err, ErrBehaviorPanic) {
		t.Fatalf("expected ErrBehaviorPanic, got %v", err)
	}
	if a.Status() != models.AgentStatusError {
		t.Errorf("Status = %q, want error", a.Status())
	}
}

func TestMakeDecision_AverageResponseTime(t *testing.T) {
	delays := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond}
	i := 0
	a := New(Definition{ID: "x", Type: "CFO"}, FuncBehavior{
		Decide: func(ctx context.Context, req *models.DecisionRequest) (any, error) {
			time.Sleep(delays[i])
			i++
			return nil, nil
		},
	})

	for range delays {
		if _, err := a.MakeDecision(context.Background(), &models.DecisionRequest{}); err != nil {
			t.Fatal(err)
		}
	}

	avg := a.Metrics().AverageResponseTime
	if avg < 20*time.Millisecond || avg > 60*time.Millisecond {
		t.Errorf("AverageResponseTime = %v, want about 20ms", avg)
	}
}

func TestMakeDecision_OfflineRefuses(t *testing.T) {
	called := false
	a := New(Definition{ID: "x", Type: "CFO"}, FuncBehavior{
		Decide: func(ctx context.Context, req *models.DecisionRequest) (any, error) {
			called = true
			return nil, nil
		},
	})
	if err := a.SetOffline(); err != nil {
		t.Fatal(err)
	}

	_, err := a.MakeDecision(context.Background(), &models.DecisionRequest{})
	if !errors.Is(err, ErrAgentOffline) {
		t.Errorf("expected ErrAgentOffline, got %v", err)
	}
	if called {
		t.Error("behavior should not run on an offline agent")
	}

	if err := a.SetOnline(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.MakeDecision(context.Background(), &models.DecisionRequest{}); err != nil {
		t.Errorf("online agent should decide, got %v", err)
	}
}

func TestMakeDecision_OfflineDuringCallStaysOffline(t *testing.T) {
	var a *Agent
	a = New(Definition{ID: "x", Type: "CFO"}, FuncBehavior{
		Decide: func(ctx context.Context, req *models.DecisionRequest) (any, error) {
			if err := a.SetOffline(); err != nil {
				t.Errorf("SetOffline: %v", err)
			}
			return "ok", nil
		},
	})
	if _, err := a.MakeDecision(context.Background(), &models.DecisionRequest{}); err != nil {
		t.Fatalf("MakeDecision: %v", err)
	}
	if a.Status() != models.AgentStatusOffline {
		t.Errorf("Status = %s, want offline", a.Status())
	}

	// Racing SetOffline against the end of a decision must never bring the agent back.
	for i := 0; i < 200; i++ {
		b := New(Definition{ID: "y", Type: "CFO"}, FuncBehavior{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = b.SetOffline()
		}()
		_, _ = b.MakeDecision(context.Background(), &models.DecisionRequest{})
		<-done
		if b.Status() != models.AgentStatusOffline {
			t.Fatalf("iteration %d: Status = %s, want offline", i, b.Status())
		}
		b.Close()
	}
}

func TestExecuteTask(t *testing.T) {
	a := New(Definition{ID: "pm-1", Type: "ProjectManager"}, StubBehavior{AgentType: "ProjectManager"})

	result, err := a.ExecuteTask(context.Background(), &models.Task{ID: "t1", Type: "plan"})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if result == nil {
		t.Error("expected stub result")
	}
	if a.Status() != models.AgentStatusIdle {
		t.Errorf("Status = %q, want idle", a.Status())
	}
	m := a.Metrics()
	if m.TasksCompleted != 1 || m.DecisionsMade != 0 || m.AverageResponseTime != 0 {
		t.Errorf("metrics = %+v, want only TasksCompleted=1", m)
	}
}

func TestRequestDecision_EmitsEvent(t *testing.T) {
	a := New(Definition{ID: "pm-1", Type: "ProjectManager"}, StubBehavior{})

	req := a.RequestDecision("budget_allocation", map[string]any{"amount": 5000},
		WithPriority(models.PriorityHigh), WithTimeout(5*time.Second))

	if req.ID == "" {
		t.Error("request ID should be generated")
	}
	if req.Status != models.DecisionStatusPending {
		t.Errorf("Status = %q, want pending", req.Status)
	}
	if req.Priority != models.PriorityHigh || req.Timeout != 5*time.Second {
		t.Errorf("options not applied: %+v", req)
	}

	select {
	case ev := <-a.Events():
		if ev.Type != EventDecisionRequested {
			t.Fatalf("event type = %q, want %q", ev.Type, EventDecisionRequested)
		}
		if ev.Decision.ID != req.ID || ev.Decision.RequesterID != "pm-1" {
			t.Errorf("event decision = %+v", ev.Decision)
		}
	case <-time.After(time.Second):
		t.Fatal("no event emitted")
	}
}

func TestRequestDecision_DefaultsAndUniqueIDs(t *testing.T) {
	a := New(Definition{ID: "pm-1", Type: "ProjectManager"}, StubBehavior{}, WithEventBuffer(10))

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		req := a.RequestDecision("project_planning", nil)
		if seen[req.ID] {
			t.Fatalf("duplicate decision ID %s", req.ID)
		}
		seen[req.ID] = true
		if req.Priority != models.PriorityMedium {
			t.Errorf("default priority = %q, want medium", req.Priority)
		}
		if req.Timeout != models.DefaultDecisionTimeout {
			t.Errorf("default timeout = %v", req.Timeout)
		}
	}
}

func TestHandleDecision_CallsBehaviorHandler(t *testing.T) {
	var got *models.DecisionRequest
	a := New(Definition{ID: "pm-1", Type: "ProjectManager"}, FuncBehavior{
		OnDone: func(ctx context.Context, req *models.DecisionRequest) { got = req },
	})

	req := &models.DecisionRequest{ID: "d1", Type: "budget_allocation", Status: models.DecisionStatusResolved}
	a.HandleDecision(context.Background(), req)

	if got == nil || got.ID != "d1" {
		t.Fatalf("handler not called with request, got %+v", got)
	}
	events := drain(a)
	if len(events) != 1 || events[0].Type != EventDecisionHandled {
		t.Errorf("expected one decision_handled event, got %+v", events)
	}
}

func TestReport_EmitsEvent(t *testing.T) {
	a := New(Definition{ID: "mkt-1", Type: "Marketing", Name: "Marketing Lead"}, StubBehavior{})

	r := a.Report("weekly", "all good", map[string]any{"week": 42})
	if r.ID == "" || r.AgentName != "Marketing Lead" {
		t.Errorf("report = %+v", r)
	}

	events := drain(a)
	if len(events) != 1 || events[0].Type != EventReport || events[0].Report.ID != r.ID {
		t.Errorf("expected report event, got %+v", events)
	}
}

func TestValidateAction(t *testing.T) {
	a := New(Definition{ID: "legal-1", Type: "Legal"}, StubBehavior{},
		WithSkills(&skills.Skills{Never: []string{"sign without review"}}))

	if res := a.ValidateAction("Sign without review the vendor NDA"); res.Valid {
		t.Error("expected violation")
	} else if res.Rule != "sign without review" {
		t.Errorf("Rule = %q", res.Rule)
	}

	if res := a.ValidateAction("review the vendor NDA"); !res.Valid {
		t.Errorf("expected valid, got %+v", res)
	}

	a.SetSkills(nil)
	if res := a.ValidateAction("sign without review"); !res.Valid {
		t.Error("no rules should mean valid")
	}
}

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(Event{Type: EventStatusChanged})
	e.Emit(Event{Type: EventStatusChanged})

	if e.DroppedCount() != 1 {
		t.Errorf("DroppedCount = %d, want 1", e.DroppedCount())
	}
}

func TestEventEmitter_CloseUnblocksSender(t *testing.T) {
	e := NewEventEmitter(1)
	e.EmitBlocking(Event{Type: EventReport})

	done := make(chan bool, 1)
	go func() {
		done <- e.EmitBlocking(Event{Type: EventReport})
	}()

	time.Sleep(20 * time.Millisecond)
	e.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("EmitBlocking should report failure after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock sender")
	}

	if e.EmitBlocking(Event{}) {
		t.Error("EmitBlocking after Close should return false")
	}
	e.Close()
}
