// Package regen implements the self-regeneration manager: it detects
// structural problems that block plan execution (unregistered tools, tool
// plugins missing their entry method) and drives pluggable repair strategies
// against them. The execution loop never depends on repair success; it
// retries regardless of the regeneration outcome.
package regen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oleg121203/atlas-core/plan"
)

// IssueKind classifies a detected structural problem.
type IssueKind string

const (
	// IssueMissingTool means a plan step names a tool absent from the registry.
	IssueMissingTool IssueKind = "missing_tool"

	// IssueMissingMethod means a tool plugin source declares a tool type
	// without the required Execute method.
	IssueMissingMethod IssueKind = "missing_method"

	// IssueParseFailure means a tool plugin source could not be parsed.
	IssueParseFailure IssueKind = "parse_failure"
)

// Issue describes one detected structural problem.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Subject string    `json:"subject"`
	Detail  string    `json:"detail,omitempty"`
}

// Fix describes the outcome of one repair attempt.
type Fix struct {
	Applied bool   `json:"applied"`
	Action  string `json:"action,omitempty"`
}

// SystemHealth summarizes the state of the system after a regeneration pass.
type SystemHealth string

const (
	HealthHealthy  SystemHealth = "healthy"
	HealthRepaired SystemHealth = "repaired"
	HealthDegraded SystemHealth = "degraded"
	HealthFailed   SystemHealth = "failed"
)

// Outcome is the result of one regeneration pass.
type Outcome struct {
	IssuesFound  int          `json:"issues_found"`
	FixesApplied int          `json:"fixes_applied"`
	SystemHealth SystemHealth `json:"system_health"`
}

// Strategy attempts to repair a detected issue.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// CanRepair reports whether the strategy handles this issue kind.
	CanRepair(issue Issue) bool

	// Repair attempts the fix. A Fix with Applied=false is a valid no-op.
	Repair(ctx context.Context, issue Issue) (Fix, error)
}

// NoopStrategy handles every issue without repairing anything. It is the
// default when no repair strategy is configured.
type NoopStrategy struct{}

// Name identifies the strategy.
func (NoopStrategy) Name() string { return "noop" }

// CanRepair always returns true; the no-op accepts everything.
func (NoopStrategy) CanRepair(Issue) bool { return true }

// Repair does nothing and reports that nothing was applied.
func (NoopStrategy) Repair(context.Context, Issue) (Fix, error) {
	return Fix{Applied: false, Action: "noop"}, nil
}

// Detector finds structural issues for a plan about to be retried.
type Detector interface {
	Detect(ctx context.Context, p *plan.Plan) []Issue
}

// Manager coordinates detection and repair. Collaborators are injected so
// the retry loop stays unit-testable.
type Manager struct {
	detectors  []Detector
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDetector appends an issue detector.
func WithDetector(d Detector) Option {
	return func(m *Manager) {
		m.detectors = append(m.detectors, d)
	}
}

// WithStrategy appends a repair strategy. Strategies are consulted in
// registration order; the first one that can repair an issue handles it.
func WithStrategy(s Strategy) Option {
	return func(m *Manager) {
		m.strategies = append(m.strategies, s)
	}
}

// NewManager creates a regeneration manager. With no options it detects
// nothing and repairs nothing.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if len(m.strategies) == 0 {
		m.strategies = []Strategy{NoopStrategy{}}
	}

	return m
}

// Regenerate runs one detection and repair pass for the plan.
// lastResult is informational; a nil result is accepted.
func (m *Manager) Regenerate(ctx context.Context, p *plan.Plan, lastResult *plan.Result) Outcome {
	var issues []Issue
	for _, detector := range m.detectors {
		issues = append(issues, detector.Detect(ctx, p)...)
	}

	if lastResult != nil && lastResult.Error != "" {
		m.logger.Debug("Regenerating after failure", "error", lastResult.Error)
	}

	if len(issues) == 0 {
		return Outcome{SystemHealth: HealthHealthy}
	}

	fixes := 0
	for _, issue := range issues {
		m.logger.Warn("Structural issue detected",
			"kind", issue.Kind,
			"subject", issue.Subject,
			"detail", issue.Detail)

		fix, err := m.repair(ctx, issue)
		if err != nil {
			m.logger.Error("Repair failed",
				"kind", issue.Kind,
				"subject", issue.Subject,
				"error", err)
			continue
		}
		if fix.Applied {
			m.logger.Info("Fix applied",
				"kind", issue.Kind,
				"subject", issue.Subject,
				"action", fix.Action)
			fixes++
		}
	}

	return Outcome{
		IssuesFound:  len(issues),
		FixesApplied: fixes,
		SystemHealth: healthFor(len(issues), fixes),
	}
}

// repair dispatches an issue to the first strategy that accepts it.
func (m *Manager) repair(ctx context.Context, issue Issue) (Fix, error) {
	for _, strategy := range m.strategies {
		if !strategy.CanRepair(issue) {
			continue
		}
		return strategy.Repair(ctx, issue)
	}
	return Fix{}, fmt.Errorf("no strategy for issue kind %s", issue.Kind)
}

// healthFor maps issue and fix counts to a health summary.
func healthFor(issues, fixes int) SystemHealth {
	switch {
	case issues == 0:
		return HealthHealthy
	case fixes == issues:
		return HealthRepaired
	case fixes > 0:
		return HealthDegraded
	default:
		return HealthFailed
	}
}
