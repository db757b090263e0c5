// Package engine executes a plan's operational steps against the tool
// registry, producing a single aggregated result per execution pass.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// Engine runs plans step by step.
type Engine struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine bound to a tool registry.
func New(registry *tools.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs every step of the plan in order. Data from each step is
// merged into the result's top-level data map, later steps winning on key
// collisions, so criteria checks see fields like "emails" directly. The pass
// succeeds only if every step succeeds; the first soft failure stops the
// pass and yields a failed result. A step naming an unregistered tool is an
// infrastructure error and is returned as such, to be recovered at the loop
// boundary.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan) (*plan.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	merged := make(map[string]any)
	stepsRun := 0

	for _, phase := range p.Phases {
		e.logger.Debug("Executing phase", "plan", p.ID, "phase", phase.Name)

		for _, step := range phase.Steps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			executor, err := e.registry.Get(step.Tool)
			if err != nil {
				return nil, fmt.Errorf("phase %s step %d: %w", phase.Name, step.Sequence, err)
			}

			call := tools.Call{
				ID:        uuid.New().String(),
				Name:      step.Tool,
				Arguments: step.Arguments,
			}

			e.logger.Debug("Executing step",
				"plan", p.ID,
				"phase", phase.Name,
				"step", step.Sequence,
				"tool", step.Tool)

			result, err := executor.Execute(ctx, call)
			if err != nil {
				return nil, fmt.Errorf("phase %s step %d (%s): %w", phase.Name, step.Sequence, step.Tool, err)
			}

			stepsRun++

			if !result.Success {
				e.logger.Warn("Step failed",
					"plan", p.ID,
					"phase", phase.Name,
					"step", step.Sequence,
					"tool", step.Tool,
					"error", result.Error)

				mergeData(merged, result.Data)
				return &plan.Result{
					Success: false,
					Data:    merged,
					Message: fmt.Sprintf("failed at phase %s step %d after %d steps", phase.Name, step.Sequence, stepsRun),
					Error:   result.Error,
				}, nil
			}

			mergeData(merged, result.Data)
		}
	}

	return &plan.Result{
		Success: true,
		Data:    merged,
		Message: fmt.Sprintf("completed %d steps across %d phases", stepsRun, len(p.Phases)),
	}, nil
}

// mergeData folds a step's data into the aggregate, later steps winning on
// key collisions.
func mergeData(merged map[string]any, data map[string]any) {
	for k, v := range data {
		merged[k] = v
	}
}
