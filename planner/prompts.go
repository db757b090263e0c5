package planner

import (
	"fmt"
	"strings"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// JSON format examples, repeated in every system prompt and in every
// correction prompt because local LLMs need the format example each time.
const (
	strategicFormat = `{
  "objective": "<one sentence stating what the plan accomplishes>",
  "phases": [
    {"name": "<short phase name>", "description": "<what this phase covers>"}
  ]
}`

	tacticalFormat = `{
  "steps": [
    {"description": "<one concrete action>"}
  ]
}`

	operationalFormat = `{
  "tool": "<name of one available tool>",
  "arguments": {"<parameter>": "<value>"}
}`
)

func strategicSystemPrompt() string {
	return `You are the strategic tier of a task planner.

## Your Objective

Turn a user goal into a single objective sentence and an ordered list of
high-level phases. Phases describe WHAT must happen, not HOW. Keep the list
short: 1-4 phases, each independently meaningful.

## Output Format

Respond with ONLY a valid JSON object matching this structure:

` + "```json\n" + strategicFormat + "\n```"
}

func strategicUserPrompt(g *plan.Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a phase outline for this goal:\n\n**Goal:** %s\n", g.Description)
	if len(g.Criteria) > 0 {
		b.WriteString("\n**Success criteria:**\n")
		for key, hint := range g.Criteria {
			fmt.Fprintf(&b, "- %s: %s\n", key, hint)
		}
	}
	return b.String()
}

func tacticalSystemPrompt() string {
	return `You are the tactical tier of a task planner.

## Your Objective

Expand one phase of a plan into an ordered list of concrete steps. Each step
is a single action that one tool invocation can perform. Do not name tools;
describe the action.

## Output Format

Respond with ONLY a valid JSON object matching this structure:

` + "```json\n" + tacticalFormat + "\n```"
}

func tacticalUserPrompt(objective string, phase plan.Phase) string {
	return fmt.Sprintf(`Expand this phase into concrete steps:

**Plan objective:** %s
**Phase:** %s
**Phase description:** %s`, objective, phase.Name, phase.Description)
}

func operationalSystemPrompt(available []tools.Definition) string {
	var b strings.Builder
	b.WriteString(`You are the operational tier of a task planner.

## Your Objective

Bind one step to exactly one of the available tools and produce its
arguments. You MUST pick a tool from the list below; never invent a name.

## Available Tools

`)
	for _, def := range available {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
		if len(def.Parameters) > 0 {
			b.WriteString("  Parameters:\n")
			for param, desc := range def.Parameters {
				fmt.Fprintf(&b, "  - %s: %v\n", param, desc)
			}
		}
	}
	b.WriteString("\n## Output Format\n\nRespond with ONLY a valid JSON object matching this structure:\n\n```json\n" + operationalFormat + "\n```")
	return b.String()
}

func operationalUserPrompt(objective, stepDescription string) string {
	return fmt.Sprintf(`Bind this step to a tool invocation:

**Plan objective:** %s
**Step:** %s`, objective, stepDescription)
}
