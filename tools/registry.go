// Package tools defines the tool registry and execution contracts used by
// the operational planner and the execution engine.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oleg121203/atlas-core/plan"
)

// Sentinel errors for registry operations.
var (
	ErrToolExists   = errors.New("tool already registered")
	ErrToolNotFound = errors.New("tool not found")
)

// Definition describes a tool for the operational planner.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Call is a single tool invocation request.
type Call struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Executor runs one or more named tools.
type Executor interface {
	// Execute performs the tool call. Tool-level failures are reported in
	// the result (Success=false); the error return is for infrastructure
	// problems only.
	Execute(ctx context.Context, call Call) (plan.Result, error)

	// ListTools returns the definitions this executor serves.
	ListTools() []Definition
}

// Registry maps tool names to their executors. It is safe for concurrent
// use; the self-regeneration manager may add tools while a loop is running.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	defs      map[string]Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		defs:      make(map[string]Definition),
	}
}

// Register adds all tools served by an executor.
func (r *Registry) Register(exec Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range exec.ListTools() {
		if _, ok := r.executors[def.Name]; ok {
			return fmt.Errorf("%w: %s", ErrToolExists, def.Name)
		}
		r.executors[def.Name] = exec
		r.defs[def.Name] = def
	}
	return nil
}

// RegisterTool adds a single named tool backed by an executor.
// Used by repair strategies to patch in missing tools at runtime.
func (r *Registry) RegisterTool(def Definition, exec Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executors[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, def.Name)
	}
	r.executors[def.Name] = exec
	r.defs[def.Name] = def
	return nil
}

// Get returns the executor for a tool name.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return exec, nil
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[name]
	return ok
}

// List returns all registered tool definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	defs := r.List()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
