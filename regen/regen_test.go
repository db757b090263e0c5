package regen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// staticDetector returns a fixed issue list.
type staticDetector struct {
	issues []Issue
}

func (d staticDetector) Detect(context.Context, *plan.Plan) []Issue {
	return d.issues
}

// scriptedStrategy repairs a fixed issue kind with a scripted fix or error.
type scriptedStrategy struct {
	kind  IssueKind
	fix   Fix
	err   error
	calls int
}

func (s *scriptedStrategy) Name() string               { return "scripted" }
func (s *scriptedStrategy) CanRepair(issue Issue) bool { return issue.Kind == s.kind }
func (s *scriptedStrategy) Repair(context.Context, Issue) (Fix, error) {
	s.calls++
	return s.fix, s.err
}

func planUsing(t *testing.T, toolNames ...string) *plan.Plan {
	t.Helper()
	p, err := plan.NewPlan("goal-1", "objective")
	require.NoError(t, err)
	steps := make([]plan.Step, len(toolNames))
	for i, name := range toolNames {
		steps[i] = plan.Step{Sequence: i + 1, Tool: name}
	}
	p.Phases = []plan.Phase{{Name: "work", Steps: steps}}
	return p
}

func TestRegenerateNoIssuesIsHealthy(t *testing.T) {
	m := NewManager(WithDetector(staticDetector{}))

	outcome := m.Regenerate(context.Background(), planUsing(t, "email_fetch"), nil)

	assert.Equal(t, HealthHealthy, outcome.SystemHealth)
	assert.Zero(t, outcome.IssuesFound)
	assert.Zero(t, outcome.FixesApplied)
}

func TestRegenerateAllIssuesRepaired(t *testing.T) {
	strategy := &scriptedStrategy{kind: IssueMissingTool, fix: Fix{Applied: true, Action: "stubbed"}}
	m := NewManager(
		WithDetector(staticDetector{issues: []Issue{
			{Kind: IssueMissingTool, Subject: "a"},
			{Kind: IssueMissingTool, Subject: "b"},
		}}),
		WithStrategy(strategy),
	)

	outcome := m.Regenerate(context.Background(), planUsing(t, "a", "b"), nil)

	assert.Equal(t, HealthRepaired, outcome.SystemHealth)
	assert.Equal(t, 2, outcome.IssuesFound)
	assert.Equal(t, 2, outcome.FixesApplied)
	assert.Equal(t, 2, strategy.calls)
}

func TestRegeneratePartialRepairIsDegraded(t *testing.T) {
	m := NewManager(
		WithDetector(staticDetector{issues: []Issue{
			{Kind: IssueMissingTool, Subject: "a"},
			{Kind: IssueMissingMethod, Subject: "BrokenTool"},
		}}),
		// Only missing_tool issues are repairable here.
		WithStrategy(&scriptedStrategy{kind: IssueMissingTool, fix: Fix{Applied: true}}),
	)

	outcome := m.Regenerate(context.Background(), planUsing(t, "a"), nil)

	assert.Equal(t, HealthDegraded, outcome.SystemHealth)
	assert.Equal(t, 2, outcome.IssuesFound)
	assert.Equal(t, 1, outcome.FixesApplied)
}

func TestRegenerateNothingRepairedIsFailed(t *testing.T) {
	m := NewManager(
		WithDetector(staticDetector{issues: []Issue{{Kind: IssueMissingTool, Subject: "a"}}}),
		WithStrategy(&scriptedStrategy{kind: IssueMissingTool, err: errors.New("boom")}),
	)

	outcome := m.Regenerate(context.Background(), planUsing(t, "a"), nil)

	assert.Equal(t, HealthFailed, outcome.SystemHealth)
	assert.Equal(t, 1, outcome.IssuesFound)
	assert.Zero(t, outcome.FixesApplied)
}

func TestRegenerateDefaultNoopStrategy(t *testing.T) {
	m := NewManager(
		WithDetector(staticDetector{issues: []Issue{{Kind: IssueMissingTool, Subject: "a"}}}),
	)

	outcome := m.Regenerate(context.Background(), planUsing(t, "a"), &plan.Result{
		Success: false,
		Error:   "tool not found",
	})

	// Noop accepts the issue but applies nothing.
	assert.Equal(t, HealthFailed, outcome.SystemHealth)
	assert.Equal(t, 1, outcome.IssuesFound)
	assert.Zero(t, outcome.FixesApplied)
}

func TestRegistryDetectorReportsMissingTools(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.RegisterTool(tools.Definition{Name: "known"}, &stubExecutor{
		def: tools.Definition{Name: "known"},
	}))

	d := NewRegistryDetector(registry)
	issues := d.Detect(context.Background(), planUsing(t, "known", "missing", "missing"))

	require.Len(t, issues, 1, "distinct tools only")
	assert.Equal(t, IssueMissingTool, issues[0].Kind)
	assert.Equal(t, "missing", issues[0].Subject)
}

func TestStubToolStrategyRegistersStub(t *testing.T) {
	registry := tools.NewRegistry()
	strategy := NewStubToolStrategy(registry)

	issue := Issue{Kind: IssueMissingTool, Subject: "calendar_read"}
	require.True(t, strategy.CanRepair(issue))
	assert.False(t, strategy.CanRepair(Issue{Kind: IssueMissingMethod}))

	fix, err := strategy.Repair(context.Background(), issue)
	require.NoError(t, err)
	assert.True(t, fix.Applied)
	assert.True(t, registry.Has("calendar_read"))

	// The stub answers with a soft failure, not a hard error.
	exec, err := registry.Get("calendar_read")
	require.NoError(t, err)
	result, err := exec.Execute(context.Background(), tools.Call{Name: "calendar_read"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "calendar_read")

	// Repairing the same issue twice fails on the existing registration.
	_, err = strategy.Repair(context.Background(), issue)
	assert.ErrorIs(t, err, tools.ErrToolExists)
}

func TestEndToEndMissingToolRepair(t *testing.T) {
	registry := tools.NewRegistry()
	m := NewManager(
		WithDetector(NewRegistryDetector(registry)),
		WithStrategy(NewStubToolStrategy(registry)),
	)

	p := planUsing(t, "email_fetch")
	outcome := m.Regenerate(context.Background(), p, nil)

	assert.Equal(t, HealthRepaired, outcome.SystemHealth)
	assert.True(t, registry.Has("email_fetch"))

	// A second pass finds nothing to fix.
	outcome = m.Regenerate(context.Background(), p, nil)
	assert.Equal(t, HealthHealthy, outcome.SystemHealth)
}
