package regen

import (
	"context"
	"fmt"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// RegistryDetector reports plan steps that name tools absent from the
// registry. This is the most common structural failure: the operational
// planner bound a step to a tool that was never registered.
type RegistryDetector struct {
	registry *tools.Registry
}

// NewRegistryDetector creates a detector bound to a tool registry.
func NewRegistryDetector(registry *tools.Registry) *RegistryDetector {
	return &RegistryDetector{registry: registry}
}

// Detect returns one missing_tool issue per unregistered tool the plan uses.
func (d *RegistryDetector) Detect(_ context.Context, p *plan.Plan) []Issue {
	var issues []Issue
	for _, name := range p.ToolNames() {
		if d.registry.Has(name) {
			continue
		}
		issues = append(issues, Issue{
			Kind:    IssueMissingTool,
			Subject: name,
			Detail:  fmt.Sprintf("tool %q is referenced by the plan but not registered", name),
		})
	}
	return issues
}
