// Package goal implements the goal-achievement checker: a keyword-driven
// classifier that decides whether an execution result satisfies a goal's
// criteria. Domain checks are pluggable strategies keyed by the criteria
// keywords they understand, so new domains register without growing a
// branching dispatcher.
package goal

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/oleg121203/atlas-core/plan"
)

// CriterionChecker verifies one domain of goal criteria against a result.
type CriterionChecker interface {
	// Name identifies the strategy in logs.
	Name() string

	// Applies reports whether this strategy is relevant for the criteria.
	Applies(criteria map[string]string) bool

	// Check returns nil when the result satisfies the strategy's criteria.
	Check(result *plan.Result, criteria map[string]string) error
}

// Checker evaluates execution results against goal criteria.
type Checker struct {
	strategies []CriterionChecker
	logger     *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithStrategy appends an additional criterion strategy.
func WithStrategy(s CriterionChecker) Option {
	return func(c *Checker) {
		c.strategies = append(c.strategies, s)
	}
}

// NewChecker creates a checker with the built-in email and browser
// strategies plus any extras supplied via options.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		strategies: []CriterionChecker{
			&EmailChecker{},
			&BrowserChecker{},
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Achieved reports whether the result satisfies the goal criteria.
// A result with Success=false never satisfies any goal. Otherwise every
// applicable strategy must pass, and the result must carry data or a message.
func (c *Checker) Achieved(result *plan.Result, criteria map[string]string) bool {
	if result == nil || !result.Success {
		return false
	}

	for _, strategy := range c.strategies {
		if !strategy.Applies(criteria) {
			continue
		}
		if err := strategy.Check(result, criteria); err != nil {
			c.logger.Debug("Goal criterion not met",
				"strategy", strategy.Name(),
				"reason", err)
			return false
		}
	}

	// A nominally successful result with nothing in it achieves nothing.
	if result.Empty() {
		c.logger.Debug("Goal not met: result carries no data or message")
		return false
	}

	return true
}

// mentions reports whether any of the keywords appears among the criteria
// keys or values (case-insensitive).
func mentions(criteria map[string]string, keywords ...string) bool {
	for key, value := range criteria {
		lowerKey := strings.ToLower(key)
		lowerVal := strings.ToLower(value)
		for _, kw := range keywords {
			if strings.Contains(lowerKey, kw) || strings.Contains(lowerVal, kw) {
				return true
			}
		}
	}
	return false
}

// EmailChecker requires a non-empty emails list, and when the criteria also
// mention security, at least one email whose subject contains "security".
type EmailChecker struct{}

// Name identifies the strategy.
func (e *EmailChecker) Name() string { return "email" }

// Applies reports whether the criteria mention email retrieval.
func (e *EmailChecker) Applies(criteria map[string]string) bool {
	return mentions(criteria, "email", "gmail")
}

// Check verifies the email-domain criteria against the result data.
func (e *EmailChecker) Check(result *plan.Result, criteria map[string]string) error {
	emails := extractList(result.Data, "emails")
	if len(emails) == 0 {
		return fmt.Errorf("no emails in result data")
	}

	if !mentions(criteria, "security") {
		return nil
	}

	for _, item := range emails {
		email, ok := item.(map[string]any)
		if !ok {
			continue
		}
		subject, _ := email["subject"].(string)
		if strings.Contains(strings.ToLower(subject), "security") {
			return nil
		}
	}
	return fmt.Errorf("no email subject mentions security")
}

// BrowserChecker requires a successful browser_result in the result data.
type BrowserChecker struct{}

// Name identifies the strategy.
func (b *BrowserChecker) Name() string { return "browser" }

// Applies reports whether the criteria mention browser automation.
func (b *BrowserChecker) Applies(criteria map[string]string) bool {
	return mentions(criteria, "browser", "safari")
}

// Check verifies that the browser step reported success.
func (b *BrowserChecker) Check(result *plan.Result, _ map[string]string) error {
	raw, ok := result.Data["browser_result"]
	if !ok {
		return fmt.Errorf("no browser_result in result data")
	}

	browserResult, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("browser_result has unexpected shape")
	}

	if success, _ := browserResult["success"].(bool); !success {
		return fmt.Errorf("browser_result reports failure")
	}
	return nil
}

// extractList pulls a list value out of result data, tolerating both
// []any (from JSON decoding) and typed slices.
func extractList(data map[string]any, key string) []any {
	raw, ok := data[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}
