package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1)
	e.Emit(OrchestratorEvent{Type: EventDecisionQueued})
	e.Emit(OrchestratorEvent{Type: EventDecisionResolved})

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
	ev := <-e.Events()
	if ev.Type != EventDecisionQueued {
		t.Errorf("kept %s, want the first event", ev.Type)
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected Emit to stamp the event")
	}
}

func TestEventEmitter_EmitAfterClose(t *testing.T) {
	e := NewEventEmitter(0)
	e.Close()
	e.Close()
	e.Emit(OrchestratorEvent{Type: EventDecisionQueued})

	if _, ok := <-e.Events(); ok {
		t.Error("expected closed channel")
	}
}

func TestDebugLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.Log("resolved %s", "d-1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "resolved d-1") {
		t.Errorf("log = %q", data)
	}

	var nop *DebugLogger
	nop.Log("ignored")
	if err := nop.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
	if NopLogger().Enabled() {
		t.Error("NopLogger must be disabled")
	}
}
