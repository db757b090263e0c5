package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oleg121203/atlas-core/patterns"
	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// Pipeline composes the three planner tiers into a single plan builder.
// When a pattern library is configured and a pattern matches the goal, the
// plan is seeded from the template and no LLM calls are made.
type Pipeline struct {
	strategic   *Strategic
	tactical    *Tactical
	operational *Operational
	registry    *tools.Registry
	library     *patterns.Library
	logger      *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLibrary sets the pattern library consulted before LLM planning.
func WithLibrary(library *patterns.Library) PipelineOption {
	return func(p *Pipeline) {
		p.library = library
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a planning pipeline over an LLM client and the tool
// registry the operational tier binds against.
func NewPipeline(client llmCompleter, registry *tools.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.strategic = NewStrategic(client, p.logger)
	p.tactical = NewTactical(client, p.logger)
	p.operational = NewOperational(client, p.logger)
	return p
}

// BuildPlan turns a goal into a fully bound plan: pattern library first,
// then strategic, tactical per phase, and operational per step.
func (p *Pipeline) BuildPlan(ctx context.Context, g *plan.Goal) (*plan.Plan, error) {
	if p.library != nil {
		if pattern := p.library.Match(g.Description); pattern != nil {
			built, err := p.library.BuildPlan(g, pattern)
			if err == nil {
				p.logger.Info("Plan seeded from pattern",
					"goal", g.ID,
					"pattern", pattern.Name)
				return built, nil
			}
			p.logger.Warn("Pattern plan rejected, falling back to planners",
				"goal", g.ID,
				"pattern", pattern.Name,
				"error", err)
		}
	}

	objective, phases, err := p.strategic.PlanObjective(ctx, g)
	if err != nil {
		return nil, err
	}

	built, err := plan.NewPlan(g.ID, objective)
	if err != nil {
		return nil, err
	}
	built.Source = "planner"

	available := p.registry.List()
	seq := 1

	for _, phase := range phases {
		descriptions, err := p.tactical.PlanSteps(ctx, objective, phase)
		if err != nil {
			return nil, fmt.Errorf("phase %q: %w", phase.Name, err)
		}

		steps := make([]plan.Step, 0, len(descriptions))
		for _, desc := range descriptions {
			tool, args, err := p.operational.BindTool(ctx, objective, desc, available)
			if err != nil {
				return nil, fmt.Errorf("phase %q step %q: %w", phase.Name, desc, err)
			}
			steps = append(steps, plan.Step{
				Sequence:    seq,
				Description: desc,
				Tool:        tool,
				Arguments:   args,
			})
			seq++
		}

		phase.Steps = steps
		built.Phases = append(built.Phases, phase)
	}

	if err := built.Validate(); err != nil {
		return nil, fmt.Errorf("planners produced an invalid plan: %w", err)
	}

	p.logger.Info("Plan built",
		"goal", g.ID,
		"phases", len(built.Phases),
		"steps", seq-1)
	return built, nil
}
