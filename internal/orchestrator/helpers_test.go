package orchestrator

import (
	"testing"
	"time"

	"github.com/ShayCichocki/boardroom/internal/agent"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// newTestAgent builds an agent that is closed when the test ends.
func newTestAgent(t *testing.T, id, agentType string, b agent.Behavior) *agent.Agent {
	t.Helper()
	if b == nil {
		b = agent.FuncBehavior{}
	}
	a := agent.New(agent.Definition{ID: id, Type: agentType}, b)
	t.Cleanup(a.Close)
	return a
}

// newRequest builds a pending request as an agent would.
func newRequest(decisionType, requesterID string, data map[string]any) *models.DecisionRequest {
	return &models.DecisionRequest{
		ID:          agent.NewDecisionID(),
		Type:        decisionType,
		Data:        data,
		RequesterID: requesterID,
		CreatedAt:   time.Now(),
		Priority:    models.PriorityMedium,
		Timeout:     5 * time.Second,
		Status:      models.DecisionStatusPending,
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
