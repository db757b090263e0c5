package patterns

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg121203/atlas-core/plan"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const emailPattern = `{
  "triggers": ["email", "inbox"],
  "objective": "Read recent emails",
  "phases": [
    {
      "name": "fetch",
      "description": "Retrieve messages",
      "steps": [
        {"description": "read inbox", "tool": "email_read", "arguments": {"limit": 10}},
        {"description": "store summary", "tool": "memory_set"}
      ]
    }
  ]
}`

func writePattern(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLibraryLoadsAndMatches(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "email.json", emailPattern)

	lib := NewLibrary(dir, discardLogger())
	require.NoError(t, lib.Reload())
	assert.Equal(t, 1, lib.Len())

	// Name defaults to the file name
	p := lib.Match("please check my EMAIL for me")
	require.NotNil(t, p)
	assert.Equal(t, "email", p.Name)

	assert.Nil(t, lib.Match("open the browser"), "no trigger should match")
}

func TestLibraryLoadsNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "builtin")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writePattern(t, nested, "email.json", emailPattern)

	lib := NewLibrary(dir, discardLogger())
	require.NoError(t, lib.Reload())
	assert.Equal(t, 1, lib.Len())
}

func TestLibrarySkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "broken.json", `{not json`)
	writePattern(t, dir, "no_steps.json", `{"triggers":["x"],"objective":"o","phases":[{"name":"p","steps":[]}]}`)
	writePattern(t, dir, "good.json", emailPattern)

	lib := NewLibrary(dir, discardLogger())
	require.NoError(t, lib.Reload())
	assert.Equal(t, 1, lib.Len(), "only the valid pattern should load")
}

func TestLibraryMissingDirectoryIsEmpty(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "absent"), discardLogger())
	require.NoError(t, lib.Reload())
	assert.Equal(t, 0, lib.Len())
	assert.Nil(t, lib.Match("anything"))
}

func TestLibraryBuildPlan(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "email.json", emailPattern)

	lib := NewLibrary(dir, discardLogger())
	require.NoError(t, lib.Reload())

	g, err := plan.NewGoal("check email", nil)
	require.NoError(t, err)

	p := lib.Match(g.Description)
	require.NotNil(t, p)

	built, err := lib.BuildPlan(g, p)
	require.NoError(t, err)

	assert.Equal(t, g.ID, built.GoalID)
	assert.Equal(t, "pattern:email", built.Source)
	assert.Equal(t, "Read recent emails", built.Objective)
	require.Len(t, built.Phases, 1)

	steps := built.Phases[0].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Sequence)
	assert.Equal(t, 2, steps[1].Sequence)
	assert.Equal(t, "email_read", steps[0].Tool)
	assert.Equal(t, float64(10), steps[0].Arguments["limit"])
}

func TestPatternValidate(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		wantErr bool
	}{
		{
			name: "valid",
			pattern: Pattern{
				Name:      "p",
				Triggers:  []string{"x"},
				Objective: "o",
				Phases: []plan.Phase{{
					Name:  "ph",
					Steps: []plan.Step{{Description: "d", Tool: "t"}},
				}},
			},
		},
		{
			name:    "no triggers",
			pattern: Pattern{Name: "p", Objective: "o", Phases: []plan.Phase{{Steps: []plan.Step{{Tool: "t"}}}}},
			wantErr: true,
		},
		{
			name:    "no objective",
			pattern: Pattern{Name: "p", Triggers: []string{"x"}, Phases: []plan.Phase{{Steps: []plan.Step{{Tool: "t"}}}}},
			wantErr: true,
		},
		{
			name:    "step without tool",
			pattern: Pattern{Name: "p", Triggers: []string{"x"}, Objective: "o", Phases: []plan.Phase{{Steps: []plan.Step{{Description: "d"}}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
