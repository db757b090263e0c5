package regen

import (
	"context"
	"fmt"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// StubToolStrategy repairs missing_tool issues by registering a stub
// executor under the missing name. The stub reports a clear soft failure
// when invoked, which converts "tool not found" hard errors on the next
// retry into diagnosable results.
type StubToolStrategy struct {
	registry *tools.Registry
}

// NewStubToolStrategy creates a strategy bound to a tool registry.
func NewStubToolStrategy(registry *tools.Registry) *StubToolStrategy {
	return &StubToolStrategy{registry: registry}
}

// Name identifies the strategy.
func (s *StubToolStrategy) Name() string { return "stub_tool" }

// CanRepair accepts missing_tool issues only.
func (s *StubToolStrategy) CanRepair(issue Issue) bool {
	return issue.Kind == IssueMissingTool
}

// Repair registers a stub under the missing tool name.
func (s *StubToolStrategy) Repair(_ context.Context, issue Issue) (Fix, error) {
	def := tools.Definition{
		Name:        issue.Subject,
		Description: fmt.Sprintf("stub registered by self-regeneration for missing tool %q", issue.Subject),
	}

	if err := s.registry.RegisterTool(def, &stubExecutor{def: def}); err != nil {
		return Fix{}, fmt.Errorf("register stub for %s: %w", issue.Subject, err)
	}

	return Fix{Applied: true, Action: "tool_stub_registered"}, nil
}

// stubExecutor is the placeholder registered for a missing tool.
type stubExecutor struct {
	def tools.Definition
}

func (s *stubExecutor) Execute(_ context.Context, call tools.Call) (plan.Result, error) {
	return plan.Result{
		Success: false,
		Error:   fmt.Sprintf("tool %q is a regeneration stub and has no implementation", call.Name),
	}, nil
}

func (s *stubExecutor) ListTools() []tools.Definition {
	return []tools.Definition{s.def}
}
