// Package memory provides an in-process key/value scratchpad tool so plan
// steps can pass intermediate values to later steps.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// Executor implements the memory_set / memory_get tools.
type Executor struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewExecutor creates an empty scratchpad.
func NewExecutor() *Executor {
	return &Executor{values: make(map[string]any)}
}

// Execute executes a memory tool call.
func (e *Executor) Execute(_ context.Context, call tools.Call) (plan.Result, error) {
	switch call.Name {
	case "memory_set":
		return e.set(call)
	case "memory_get":
		return e.get(call)
	default:
		return plan.Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", call.Name)},
			fmt.Errorf("unknown tool: %s", call.Name)
	}
}

// ListTools returns the tool definitions for the scratchpad.
func (e *Executor) ListTools() []tools.Definition {
	return []tools.Definition{
		{
			Name:        "memory_set",
			Description: "Store a value under a key for later plan steps",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":   map[string]any{"type": "string", "description": "Key to store under"},
					"value": map[string]any{"description": "Value to store"},
				},
				"required": []string{"key", "value"},
			},
		},
		{
			Name:        "memory_get",
			Description: "Retrieve a value previously stored by memory_set",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{"type": "string", "description": "Key to look up"},
				},
				"required": []string{"key"},
			},
		},
	}
}

func (e *Executor) set(call tools.Call) (plan.Result, error) {
	key, ok := call.Arguments["key"].(string)
	if !ok || key == "" {
		return plan.Result{Success: false, Error: "key argument is required"}, nil
	}
	value, ok := call.Arguments["value"]
	if !ok {
		return plan.Result{Success: false, Error: "value argument is required"}, nil
	}

	e.mu.Lock()
	e.values[key] = value
	e.mu.Unlock()

	return plan.Result{
		Success: true,
		Data:    map[string]any{"key": key},
		Message: fmt.Sprintf("stored %q", key),
	}, nil
}

func (e *Executor) get(call tools.Call) (plan.Result, error) {
	key, ok := call.Arguments["key"].(string)
	if !ok || key == "" {
		return plan.Result{Success: false, Error: "key argument is required"}, nil
	}

	e.mu.RLock()
	value, exists := e.values[key]
	e.mu.RUnlock()

	if !exists {
		return plan.Result{Success: false, Error: fmt.Sprintf("no value stored for %q", key)}, nil
	}

	return plan.Result{
		Success: true,
		Data:    map[string]any{"key": key, "value": value},
		Message: fmt.Sprintf("retrieved %q", key),
	}, nil
}
