// Package patterns loads reusable plan templates from disk. A pattern whose
// trigger keywords match a goal description seeds a full plan without any
// LLM calls.
package patterns

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oleg121203/atlas-core/plan"
)

// Pattern is one plan template.
type Pattern struct {
	// Name identifies the pattern. Defaults to the file name without extension.
	Name string `json:"name"`

	// Triggers are keywords matched case-insensitively against the goal
	// description. Any single match selects the pattern.
	Triggers []string `json:"triggers"`

	// Objective becomes the plan objective.
	Objective string `json:"objective"`

	// Phases is the plan body. Step sequence numbers are assigned on load.
	Phases []plan.Phase `json:"phases"`
}

// Validate checks that the pattern can produce a valid plan.
func (p *Pattern) Validate() error {
	if len(p.Triggers) == 0 {
		return fmt.Errorf("pattern %q has no triggers", p.Name)
	}
	if strings.TrimSpace(p.Objective) == "" {
		return fmt.Errorf("pattern %q has no objective", p.Name)
	}
	if len(p.Phases) == 0 {
		return fmt.Errorf("pattern %q has no phases", p.Name)
	}
	for _, phase := range p.Phases {
		if len(phase.Steps) == 0 {
			return fmt.Errorf("pattern %q phase %q has no steps", p.Name, phase.Name)
		}
		for _, step := range phase.Steps {
			if step.Tool == "" {
				return fmt.Errorf("pattern %q phase %q has a step without a tool", p.Name, phase.Name)
			}
		}
	}
	return nil
}

// Library holds the loaded patterns. Safe for concurrent use; Reload swaps
// the whole set atomically.
type Library struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	patterns []Pattern
}

// NewLibrary creates a library over a directory of *.json pattern files.
// The directory may be nested; files are found with a ** glob.
func NewLibrary(dir string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{dir: dir, logger: logger}
}

// Reload re-reads every pattern file under the directory. Invalid files are
// logged and skipped; a missing directory yields an empty library.
func (l *Library) Reload() error {
	if l.dir == "" {
		return nil
	}
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		l.mu.Lock()
		l.patterns = nil
		l.mu.Unlock()
		return nil
	}

	pattern := filepath.Join(l.dir, "**", "*.json")
	files, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return fmt.Errorf("glob pattern files: %w", err)
	}
	sort.Strings(files)

	loaded := make([]Pattern, 0, len(files))
	for _, file := range files {
		p, err := loadPatternFile(file)
		if err != nil {
			l.logger.Warn("Skipping invalid pattern file",
				"file", file,
				"error", err)
			continue
		}
		loaded = append(loaded, *p)
	}

	l.mu.Lock()
	l.patterns = loaded
	l.mu.Unlock()

	l.logger.Info("Pattern library loaded",
		"dir", l.dir,
		"patterns", len(loaded))
	return nil
}

// loadPatternFile reads and validates one pattern file.
func loadPatternFile(path string) (*Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern: %w", err)
	}

	var p Pattern
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pattern: %w", err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Len returns the number of loaded patterns.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.patterns)
}

// Match returns the first pattern whose trigger appears in the goal
// description, or nil when nothing matches. Patterns are checked in file
// name order so matching is deterministic.
func (l *Library) Match(goalDescription string) *Pattern {
	text := strings.ToLower(goalDescription)

	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := range l.patterns {
		for _, trigger := range l.patterns[i].Triggers {
			if trigger == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(trigger)) {
				p := l.patterns[i]
				return &p
			}
		}
	}
	return nil
}

// BuildPlan instantiates a pattern into a plan for the goal. Step sequence
// numbers are assigned in order across all phases.
func (l *Library) BuildPlan(g *plan.Goal, p *Pattern) (*plan.Plan, error) {
	built, err := plan.NewPlan(g.ID, p.Objective)
	if err != nil {
		return nil, fmt.Errorf("build plan from pattern %q: %w", p.Name, err)
	}
	built.Source = "pattern:" + p.Name

	seq := 1
	built.Phases = make([]plan.Phase, len(p.Phases))
	for i, phase := range p.Phases {
		steps := make([]plan.Step, len(phase.Steps))
		for j, step := range phase.Steps {
			step.Sequence = seq
			seq++
			steps[j] = step
		}
		built.Phases[i] = plan.Phase{
			Name:        phase.Name,
			Description: phase.Description,
			Steps:       steps,
		}
	}

	if err := built.Validate(); err != nil {
		return nil, fmt.Errorf("pattern %q produced an invalid plan: %w", p.Name, err)
	}
	return built, nil
}
