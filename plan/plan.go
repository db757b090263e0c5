// Package plan defines the data model for goals, hierarchical plans, and
// execution results shared by the planner tiers and the execution loop.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for plan validation.
var (
	ErrGoalRequired      = errors.New("goal description is required")
	ErrObjectiveRequired = errors.New("plan objective is required")
	ErrNoPhases          = errors.New("plan has no phases")
	ErrNoSteps           = errors.New("phase has no steps")
	ErrToolRequired      = errors.New("step tool name is required")
)

// Goal is a natural-language request plus matching criteria.
// A Goal is created once per user request and is immutable during execution.
type Goal struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Criteria    map[string]string `json:"criteria,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewGoal creates a goal from a description and criteria hints.
func NewGoal(description string, criteria map[string]string) (*Goal, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrGoalRequired
	}
	return &Goal{
		ID:          uuid.New().String(),
		Description: description,
		Criteria:    criteria,
		CreatedAt:   time.Now(),
	}, nil
}

// Plan is the output of the planner tiers: an objective decomposed into
// tactical phases, each broken into operational steps.
type Plan struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	Objective string    `json:"objective"`
	Phases    []Phase   `json:"phases"`
	CreatedAt time.Time `json:"created_at"`

	// Source records where the plan came from: "planner" or "pattern:<name>".
	Source string `json:"source,omitempty"`
}

// Phase is one tactical unit of work within a plan.
type Phase struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
}

// Step is one operational tool invocation.
type Step struct {
	Sequence    int            `json:"sequence"`
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments,omitempty"`
}

// NewPlan creates an empty plan for a goal.
func NewPlan(goalID, objective string) (*Plan, error) {
	if strings.TrimSpace(objective) == "" {
		return nil, ErrObjectiveRequired
	}
	return &Plan{
		ID:        uuid.New().String(),
		GoalID:    goalID,
		Objective: objective,
		CreatedAt: time.Now(),
	}, nil
}

// Validate checks structural integrity of a fully built plan.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Objective) == "" {
		return ErrObjectiveRequired
	}
	if len(p.Phases) == 0 {
		return ErrNoPhases
	}
	for _, phase := range p.Phases {
		if len(phase.Steps) == 0 {
			return fmt.Errorf("%w: %s", ErrNoSteps, phase.Name)
		}
		for _, step := range phase.Steps {
			if strings.TrimSpace(step.Tool) == "" {
				return fmt.Errorf("%w: phase %s step %d", ErrToolRequired, phase.Name, step.Sequence)
			}
		}
	}
	return nil
}

// Steps returns all operational steps in plan order.
func (p *Plan) Steps() []Step {
	var steps []Step
	for _, phase := range p.Phases {
		steps = append(steps, phase.Steps...)
	}
	return steps
}

// ToolNames returns the distinct tool names the plan invokes, in first-use order.
func (p *Plan) ToolNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, step := range p.Steps() {
		if !seen[step.Tool] {
			seen[step.Tool] = true
			names = append(names, step.Tool)
		}
	}
	return names
}

// MarshalJSON keeps the default encoding; defined alongside UnmarshalJSON for symmetry.
func (p *Plan) MarshalJSON() ([]byte, error) {
	type alias Plan
	return json.Marshal((*alias)(p))
}

// UnmarshalJSON decodes a plan, filling in an ID when the source omitted one.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type alias Plan
	if err := json.Unmarshal(data, (*alias)(p)); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
