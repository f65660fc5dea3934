package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/boardroom/internal/router"
	"github.com/ShayCichocki/boardroom/pkg/models"
)

// FuncBehavior adapts plain functions to Behavior. A nil function
// acknowledges the request without doing anything.
type FuncBehavior struct {
	Decide  func(ctx context.Context, req *models.DecisionRequest) (any, error)
	Perform func(ctx context.Context, task *models.Task) (any, error)
	OnDone  func(ctx context.Context, req *models.DecisionRequest)
}

// ProcessDecision implements Behavior.
func (b FuncBehavior) ProcessDecision(ctx context.Context, req *models.DecisionRequest) (any, error) {
	if b.Decide == nil {
		return nil, nil
	}
	return b.Decide(ctx, req)
}

// PerformTask implements Behavior.
func (b FuncBehavior) PerformTask(ctx context.Context, task *models.Task) (any, error) {
	if b.Perform == nil {
		return nil, nil
	}
	return b.Perform(ctx, task)
}

// HandleDecision implements DecisionHandler.
func (b FuncBehavior) HandleDecision(ctx context.Context, req *models.DecisionRequest) {
	if b.OnDone != nil {
		b.OnDone(ctx, req)
	}
}

// StubBehavior acknowledges every decision and task. It stands in for the
// domain logic of agent types the host has not supplied.
type StubBehavior struct {
	AgentType string
}

// ProcessDecision implements Behavior.
func (s StubBehavior) ProcessDecision(ctx context.Context, req *models.DecisionRequest) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]any{
		"decision":      "acknowledged",
		"agent_type":    s.AgentType,
		"decision_type": req.Type,
		"summary":       fmt.Sprintf("%s acknowledged %s request from %s", s.AgentType, req.Type, req.RequesterID),
		"decided_at":    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// PerformTask implements Behavior.
func (s StubBehavior) PerformTask(ctx context.Context, task *models.Task) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]any{
		"task":       task.ID,
		"task_type":  task.Type,
		"agent_type": s.AgentType,
		"status":     "completed",
	}, nil
}

// NewDefaultFactory returns a factory with StubBehavior registered for every
// agent type the router knows.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	for _, t := range router.AgentTypes() {
		agentType := t
		f.Register(agentType, func(Definition) (Behavior, error) {
			return StubBehavior{AgentType: agentType}, nil
		})
	}
	return f
}
