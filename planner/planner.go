// Package planner turns a goal into an executable plan through three LLM
// tiers: strategic (goal to objective and phases), tactical (phase to steps)
// and operational (step to a concrete tool invocation).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oleg121203/atlas-core/llm"
	"github.com/oleg121203/atlas-core/model"
	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// maxFormatRetries is the total number of LLM call attempts when the response
// isn't valid JSON. On each retry, the parse error is fed back to the LLM as
// a correction prompt so it can fix the output format.
const maxFormatRetries = 5

// llmCompleter is the subset of the LLM client used by the planners.
// Extracted as an interface to enable testing with mock responses.
type llmCompleter interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// completeJSON calls the LLM with format correction retry. If the response
// isn't valid JSON matching the expected shape, the parse error is fed back
// as a correction prompt (up to maxFormatRetries total attempts). The
// conversation history accumulates across retries.
//
// parse receives the extracted JSON content and must return an error when the
// shape is wrong; that error becomes the correction prompt.
func completeJSON(ctx context.Context, client llmCompleter, capability model.Capability, systemPrompt, userPrompt, format string, parse func(jsonContent string) error, logger *slog.Logger) error {
	temperature := 0.7
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	var lastErr error

	for attempt := range maxFormatRetries {
		resp, err := client.Complete(ctx, llm.Request{
			Capability:  string(capability),
			Messages:    messages,
			Temperature: &temperature,
			MaxTokens:   4096,
		})
		if err != nil {
			return fmt.Errorf("LLM completion: %w", err)
		}

		logger.Debug("LLM response received",
			"capability", capability,
			"model", resp.Model,
			"attempt", attempt+1)

		parseErr := parseResponse(resp.Content, parse)
		if parseErr == nil {
			return nil
		}

		lastErr = parseErr

		// Don't retry on the last attempt
		if attempt+1 >= maxFormatRetries {
			break
		}

		logger.Warn("LLM format retry",
			"capability", capability,
			"attempt", attempt+1,
			"error", parseErr)

		// Append assistant response + correction to conversation history
		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: formatCorrectionPrompt(parseErr, format)},
		)
	}

	return fmt.Errorf("parse response: %w", lastErr)
}

// parseResponse extracts JSON from the LLM response (which may be wrapped in
// markdown code blocks) and hands it to the shape parser.
func parseResponse(content string, parse func(string) error) error {
	jsonContent := llm.ExtractJSON(content)
	if jsonContent == "" {
		return fmt.Errorf("no JSON found in response")
	}
	return parse(jsonContent)
}

// formatCorrectionPrompt asks the LLM to fix its output format.
func formatCorrectionPrompt(err error, format string) string {
	return fmt.Sprintf(
		"Your response could not be parsed. Error: %s\n\n"+
			"Please respond with ONLY a valid JSON object matching this structure:\n"+
			"```json\n%s\n```",
		err.Error(), format)
}

// Strategic is the top planner tier. It turns a goal description into an
// objective and a set of named phases.
type Strategic struct {
	client llmCompleter
	logger *slog.Logger
}

// NewStrategic creates the strategic planner.
func NewStrategic(client llmCompleter, logger *slog.Logger) *Strategic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategic{client: client, logger: logger}
}

// strategicOutput is the JSON shape the strategic tier expects back.
type strategicOutput struct {
	Objective string `json:"objective"`
	Phases    []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"phases"`
}

// PlanObjective produces the objective and phase outline for a goal.
func (s *Strategic) PlanObjective(ctx context.Context, g *plan.Goal) (string, []plan.Phase, error) {
	var out strategicOutput
	err := completeJSON(ctx, s.client, model.CapabilityStrategic,
		strategicSystemPrompt(), strategicUserPrompt(g), strategicFormat,
		func(jsonContent string) error {
			out = strategicOutput{}
			if err := json.Unmarshal([]byte(jsonContent), &out); err != nil {
				return fmt.Errorf("parse JSON: %w", err)
			}
			if out.Objective == "" {
				return fmt.Errorf("missing 'objective' field")
			}
			if len(out.Phases) == 0 {
				return fmt.Errorf("missing 'phases' field")
			}
			for i, p := range out.Phases {
				if p.Name == "" {
					return fmt.Errorf("phase %d missing 'name' field", i)
				}
			}
			return nil
		}, s.logger)
	if err != nil {
		return "", nil, fmt.Errorf("strategic planning: %w", err)
	}

	phases := make([]plan.Phase, 0, len(out.Phases))
	for _, p := range out.Phases {
		phases = append(phases, plan.Phase{
			Name:        p.Name,
			Description: p.Description,
		})
	}
	return out.Objective, phases, nil
}

// Tactical is the middle planner tier. It expands one phase into concrete
// step descriptions.
type Tactical struct {
	client llmCompleter
	logger *slog.Logger
}

// NewTactical creates the tactical planner.
func NewTactical(client llmCompleter, logger *slog.Logger) *Tactical {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tactical{client: client, logger: logger}
}

type tacticalOutput struct {
	Steps []struct {
		Description string `json:"description"`
	} `json:"steps"`
}

// PlanSteps expands a phase into ordered step descriptions.
func (t *Tactical) PlanSteps(ctx context.Context, objective string, phase plan.Phase) ([]string, error) {
	var out tacticalOutput
	err := completeJSON(ctx, t.client, model.CapabilityTactical,
		tacticalSystemPrompt(), tacticalUserPrompt(objective, phase), tacticalFormat,
		func(jsonContent string) error {
			out = tacticalOutput{}
			if err := json.Unmarshal([]byte(jsonContent), &out); err != nil {
				return fmt.Errorf("parse JSON: %w", err)
			}
			if len(out.Steps) == 0 {
				return fmt.Errorf("missing 'steps' field")
			}
			for i, s := range out.Steps {
				if strings.TrimSpace(s.Description) == "" {
					return fmt.Errorf("step %d missing 'description' field", i)
				}
			}
			return nil
		}, t.logger)
	if err != nil {
		return nil, fmt.Errorf("tactical planning: %w", err)
	}

	steps := make([]string, 0, len(out.Steps))
	for _, s := range out.Steps {
		steps = append(steps, s.Description)
	}
	return steps, nil
}

// Operational is the bottom planner tier. It binds one step description to a
// registered tool and its arguments.
type Operational struct {
	client llmCompleter
	logger *slog.Logger
}

// NewOperational creates the operational planner.
func NewOperational(client llmCompleter, logger *slog.Logger) *Operational {
	if logger == nil {
		logger = slog.Default()
	}
	return &Operational{client: client, logger: logger}
}

type operationalOutput struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// BindTool selects a tool for a step from the available definitions and
// produces its arguments. The tool name must be one of the offered
// definitions; anything else is fed back as a correction.
func (o *Operational) BindTool(ctx context.Context, objective, stepDescription string, available []tools.Definition) (string, map[string]any, error) {
	if len(available) == 0 {
		return "", nil, fmt.Errorf("operational planning: no tools registered")
	}

	known := make(map[string]bool, len(available))
	for _, def := range available {
		known[def.Name] = true
	}

	var out operationalOutput
	err := completeJSON(ctx, o.client, model.CapabilityOperational,
		operationalSystemPrompt(available), operationalUserPrompt(objective, stepDescription), operationalFormat,
		func(jsonContent string) error {
			out = operationalOutput{}
			if err := json.Unmarshal([]byte(jsonContent), &out); err != nil {
				return fmt.Errorf("parse JSON: %w", err)
			}
			if out.Tool == "" {
				return fmt.Errorf("missing 'tool' field")
			}
			if !known[out.Tool] {
				return fmt.Errorf("tool %q is not in the available tool list", out.Tool)
			}
			return nil
		}, o.logger)
	if err != nil {
		return "", nil, fmt.Errorf("operational planning: %w", err)
	}

	if out.Arguments == nil {
		out.Arguments = map[string]any{}
	}
	return out.Tool, out.Arguments, nil
}
