package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oleg121203/atlas-core/llm"
	"github.com/oleg121203/atlas-core/patterns"
	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// stubExecutor satisfies tools.Executor for registry setup.
type stubExecutor struct {
	defs []tools.Definition
}

func (s *stubExecutor) Execute(_ context.Context, _ tools.Call) (plan.Result, error) {
	return plan.Result{Success: true}, nil
}

func (s *stubExecutor) ListTools() []tools.Definition {
	return s.defs
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	err := reg.Register(&stubExecutor{defs: []tools.Definition{
		{Name: "memory_get", Description: "read a scratchpad value"},
		{Name: "memory_set", Description: "write a scratchpad value"},
	}})
	if err != nil {
		t.Fatalf("register tools: %v", err)
	}
	return reg
}

func TestPipeline_BuildsFullPlan(t *testing.T) {
	mock := &mockLLM{
		responses: []*llm.Response{
			// strategic: one phase
			{Content: `{"objective": "store a note", "phases": [{"name": "write", "description": "persist the note"}]}`, Model: "m"},
			// tactical: two steps
			{Content: `{"steps": [{"description": "write the note"}, {"description": "read it back"}]}`, Model: "m"},
			// operational: one binding per step
			{Content: `{"tool": "memory_set", "arguments": {"key": "note", "value": "hi"}}`, Model: "m"},
			{Content: `{"tool": "memory_get", "arguments": {"key": "note"}}`, Model: "m"},
		},
	}
	p := NewPipeline(mock, testRegistry(t), WithLogger(discardLogger()))

	g := testGoal(t)
	built, err := p.BuildPlan(context.Background(), g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if built.GoalID != g.ID {
		t.Errorf("GoalID = %q, want %q", built.GoalID, g.ID)
	}
	if built.Source != "planner" {
		t.Errorf("Source = %q, want %q", built.Source, "planner")
	}
	if len(built.Phases) != 1 {
		t.Fatalf("phases = %d, want 1", len(built.Phases))
	}

	steps := built.Phases[0].Steps
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}
	if steps[0].Tool != "memory_set" || steps[1].Tool != "memory_get" {
		t.Errorf("tools = %q, %q", steps[0].Tool, steps[1].Tool)
	}
	if steps[0].Sequence != 1 || steps[1].Sequence != 2 {
		t.Errorf("sequences = %d, %d, want 1, 2", steps[0].Sequence, steps[1].Sequence)
	}

	// strategic + tactical + 2x operational
	if len(mock.calls) != 4 {
		t.Errorf("LLM calls = %d, want 4", len(mock.calls))
	}
}

func TestPipeline_PatternShortCircuitsLLM(t *testing.T) {
	dir := t.TempDir()
	patternJSON := `{
  "name": "email-check",
  "triggers": ["email"],
  "objective": "Read recent emails",
  "phases": [
    {"name": "fetch", "steps": [{"description": "read inbox", "tool": "memory_get", "arguments": {"key": "inbox"}}]}
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, "email-check.json"), []byte(patternJSON), 0644); err != nil {
		t.Fatal(err)
	}

	library := patterns.NewLibrary(dir, discardLogger())
	if err := library.Reload(); err != nil {
		t.Fatalf("reload library: %v", err)
	}

	mock := &mockLLM{}
	p := NewPipeline(mock, testRegistry(t),
		WithLogger(discardLogger()),
		WithLibrary(library))

	built, err := p.BuildPlan(context.Background(), testGoal(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built.Source != "pattern:email-check" {
		t.Errorf("Source = %q, want %q", built.Source, "pattern:email-check")
	}
	if built.Objective != "Read recent emails" {
		t.Errorf("Objective = %q", built.Objective)
	}
	if len(mock.calls) != 0 {
		t.Errorf("LLM calls = %d, want 0 (pattern match skips planners)", len(mock.calls))
	}
}

func TestPipeline_NoPatternMatch_FallsThroughToPlanners(t *testing.T) {
	library := patterns.NewLibrary(t.TempDir(), discardLogger())
	if err := library.Reload(); err != nil {
		t.Fatal(err)
	}

	mock := &mockLLM{
		responses: []*llm.Response{
			{Content: `{"objective": "obj", "phases": [{"name": "p", "description": "d"}]}`, Model: "m"},
			{Content: `{"steps": [{"description": "s"}]}`, Model: "m"},
			{Content: `{"tool": "memory_get", "arguments": {}}`, Model: "m"},
		},
	}
	p := NewPipeline(mock, testRegistry(t),
		WithLogger(discardLogger()),
		WithLibrary(library))

	built, err := p.BuildPlan(context.Background(), testGoal(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built.Source != "planner" {
		t.Errorf("Source = %q, want %q", built.Source, "planner")
	}
	if len(mock.calls) != 3 {
		t.Errorf("LLM calls = %d, want 3", len(mock.calls))
	}
}
