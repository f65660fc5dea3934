// Package orchestrator coordinates a pool of typed agents.
//
// Agents emit decision requests on their own event channels. The Registry
// runs exactly one listener per agent and forwards requests to the
// DecisionQueue, which resolves them one at a time in arrival order:
//   - route the decision type to an agent type (internal/router)
//   - look up the first live agent of that type
//   - call MakeDecision and mark the request resolved or failed
//   - hand the outcome back to the requesting agent
//   - write the decision to the audit sink
//
// The Loader keeps the registry in sync with a directory of YAML agent
// manifests and reloads skills when their markdown files change.
//
// Example usage:
//
//	sink, _ := audit.NewFileSink(".boardroom/data")
//	orch := orchestrator.New(orchestrator.RequiredConfig{Sink: sink})
//	orch.Register(cfo)
//	go orch.Run(ctx)
//	ceo.RequestDecision("budget_allocation", map[string]any{"amount": 5000})
package orchestrator
