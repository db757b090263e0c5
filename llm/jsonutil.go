package llm

import (
	"regexp"
	"strings"
)

// Planner prompts demand bare JSON, but models still wrap plans in markdown
// fences or decorate them with comments and trailing commas. These helpers
// salvage a decodable document before the planner gives up and asks the
// model to correct its format.
var (
	// fencedObjectRe matches an object inside a ```json fence.
	fencedObjectRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// bareObjectRe grabs the outermost object anywhere in the text.
	bareObjectRe = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// fencedArrayRe matches an array inside a ```json fence.
	fencedArrayRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	// bareArrayRe grabs the outermost array anywhere in the text.
	bareArrayRe = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	// trailingCommaRe matches a trailing comma before ] or }.
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model response, preferring a
// fenced block over a bare object, and scrubs comment and trailing-comma
// artifacts. Returns "" when no object is present.
func ExtractJSON(content string) string {
	if m := fencedObjectRe.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := bareObjectRe.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// ExtractJSONArray is ExtractJSON for top-level arrays, used when a tactical
// planner responds with a step list instead of a wrapped object.
func ExtractJSONArray(content string) string {
	if m := fencedArrayRe.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := bareArrayRe.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// cleanJSON strips // comments and trailing commas, the two malformations
// models produce most often.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	return trailingCommaRe.ReplaceAllString(result, "$1")
}

// stripLineComment cuts a // comment off a line without touching slashes
// inside string values (URLs in tool arguments are the usual case).
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
