package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownAgentType is returned when no constructor is registered for a type.
var ErrUnknownAgentType = errors.New("unknown agent type")

// Constructor builds the behavior for an agent definition.
type Constructor func(def Definition) (Behavior, error)

// Factory maps agent types to constructors. The host populates it
// explicitly at startup; nothing is discovered at runtime.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

// Register sets the constructor for agentType, replacing any previous one.
func (f *Factory) Register(agentType string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[agentType] = c
}

// Has reports whether agentType has a constructor.
func (f *Factory) Has(agentType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ctors[agentType]
	return ok
}

// Types returns the registered agent types, sorted.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.ctors))
	for t := range f.ctors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build validates def and creates an agent with the registered behavior.
func (f *Factory) Build(def Definition, opts ...Option) (*Agent, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	ctor, ok := f.ctors[def.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgentType, def.Type)
	}

	behavior, err := ctor(def)
	if err != nil {
		return nil, fmt.Errorf("construct %s agent %s: %w", def.Type, def.ID, err)
	}
	return New(def, behavior, opts...), nil
}
