// Package loop drives the bounded retry and self-correction cycle: execute
// the plan, check goal achievement, regenerate on failure, pause, retry.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oleg121203/atlas-core/events"
	"github.com/oleg121203/atlas-core/metrics"
	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/regen"
)

// ErrRetriesExhausted is returned (wrapped) when every attempt failed or
// fell short of the goal. The last failing result is returned alongside it.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

// Config bounds the retry loop.
type Config struct {
	// MaxRetryAttempts is the total number of execution attempts per run.
	MaxRetryAttempts int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
}

// DefaultConfig returns the stock loop settings: three attempts with a
// two-second pause between them.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts: 3,
		RetryDelay:       2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("max_retry_attempts must be at least 1, got %d", c.MaxRetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay)
	}
	return nil
}

// Executor runs one execution pass of a plan. Implemented by engine.Engine.
type Executor interface {
	Execute(ctx context.Context, p *plan.Plan) (*plan.Result, error)
}

// Achiever decides whether a result satisfies goal criteria.
// Implemented by goal.Checker.
type Achiever interface {
	Achieved(result *plan.Result, criteria map[string]string) bool
}

// Regenerator runs one self-regeneration pass. Implemented by regen.Manager.
type Regenerator interface {
	Regenerate(ctx context.Context, p *plan.Plan, lastResult *plan.Result) regen.Outcome
}

// AttemptRecorder persists attempt history. Implemented by storage.Store.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, goalID string, attempt *plan.Attempt) error
}

// Runner orchestrates the retry loop. All collaborators are injected;
// publisher, recorder and metrics may be nil.
type Runner struct {
	executor    Executor
	checker     Achiever
	regenerator Regenerator
	config      Config
	logger      *slog.Logger
	publisher   *events.Publisher
	recorder    AttemptRecorder
	metrics     *metrics.Metrics

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConfig sets the retry configuration.
func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.config = cfg
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p *events.Publisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithRecorder sets the attempt history recorder.
func WithRecorder(rec AttemptRecorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithMetrics sets the Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// withSleep overrides the inter-retry pause. Used by tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// NewRunner creates a runner over the executor, checker and regenerator.
func NewRunner(executor Executor, checker Achiever, regenerator Regenerator, opts ...Option) *Runner {
	r := &Runner{
		executor:    executor,
		checker:     checker,
		regenerator: regenerator,
		config:      DefaultConfig(),
		logger:      slog.Default(),
		sleep:       sleepCtx,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run drives up to MaxRetryAttempts executions of the plan toward the goal.
//
// An attempt terminates the loop when its result succeeds and the checker
// confirms goal achievement. Every other outcome (soft failure, unmet goal,
// or an execution error recovered at this boundary) triggers one
// regeneration pass and a fixed pause before the next attempt. The same plan
// object is re-executed verbatim; regeneration repairs the environment, not
// the plan.
//
// After the budget is exhausted, the last failing result is returned
// together with an error wrapping ErrRetriesExhausted. Context cancellation
// is the only condition that short-circuits the loop.
func (r *Runner) Run(ctx context.Context, g *plan.Goal, p *plan.Plan) (*plan.Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	r.publisher.Publish(ctx, events.SubjectRunStarted, events.RunStarted{
		GoalID:      g.ID,
		PlanID:      p.ID,
		Description: g.Description,
		StartedAt:   time.Now(),
	})

	var lastResult *plan.Result

	for attempt := 0; attempt < r.config.MaxRetryAttempts; attempt++ {
		startedAt := time.Now()

		r.logger.Info("Executing plan",
			"goal", g.ID,
			"attempt", attempt+1,
			"max_attempts", r.config.MaxRetryAttempts)

		result, execErr := r.executor.Execute(ctx, p)

		// Context cancellation is not a retryable condition.
		if execErr != nil && ctx.Err() != nil {
			r.metrics.IncRun(metrics.OutcomeCanceled)
			return nil, ctx.Err()
		}

		if execErr != nil {
			// Recover the execution error at the loop boundary and funnel
			// it into the same regenerate-and-retry path as soft failures.
			r.logger.Error("Plan execution error",
				"goal", g.ID,
				"attempt", attempt+1,
				"error", execErr)
			result = &plan.Result{
				Success: false,
				Message: "plan execution aborted",
				Error:   execErr.Error(),
			}
		}

		completedAt := time.Now()
		lastResult = result

		achieved := result.Success && r.checker.Achieved(result, g.Criteria)

		r.metrics.ObserveAttempt(completedAt.Sub(startedAt).Seconds())
		r.recordAttempt(ctx, g.ID, &plan.Attempt{
			Index:       attempt,
			Result:      result,
			StartedAt:   startedAt,
			CompletedAt: completedAt,
		})
		r.publisher.Publish(ctx, events.SubjectAttemptCompleted, events.AttemptCompleted{
			GoalID:     g.ID,
			Attempt:    attempt,
			Success:    result.Success,
			Achieved:   achieved,
			Error:      result.Error,
			DurationMs: completedAt.Sub(startedAt).Milliseconds(),
			At:         completedAt,
		})

		if achieved {
			r.logger.Info("Goal achieved",
				"goal", g.ID,
				"attempts", attempt+1)
			r.metrics.IncRun(metrics.OutcomeAchieved)
			r.publisher.Publish(ctx, events.SubjectRunFinished, events.RunFinished{
				GoalID:   g.ID,
				Success:  true,
				Attempts: attempt + 1,
				At:       time.Now(),
			})
			return result, nil
		}

		if result.Success {
			r.logger.Warn("Execution succeeded but goal not achieved",
				"goal", g.ID,
				"attempt", attempt+1)
		}

		// Exactly one regeneration and pause before each retry.
		if attempt < r.config.MaxRetryAttempts-1 {
			outcome := r.regenerator.Regenerate(ctx, p, result)
			r.metrics.IncRegeneration()
			r.logger.Info("Regeneration pass complete",
				"goal", g.ID,
				"issues_found", outcome.IssuesFound,
				"fixes_applied", outcome.FixesApplied,
				"system_health", outcome.SystemHealth)
			r.publisher.Publish(ctx, events.SubjectRegenerated, events.Regenerated{
				GoalID:       g.ID,
				Attempt:      attempt,
				IssuesFound:  outcome.IssuesFound,
				FixesApplied: outcome.FixesApplied,
				SystemHealth: string(outcome.SystemHealth),
				At:           time.Now(),
			})

			if err := r.sleep(ctx, r.config.RetryDelay); err != nil {
				r.metrics.IncRun(metrics.OutcomeCanceled)
				return nil, err
			}
		}
	}

	r.logger.Warn("Retry budget exhausted",
		"goal", g.ID,
		"attempts", r.config.MaxRetryAttempts)
	r.metrics.IncRun(metrics.OutcomeExhausted)
	r.publisher.Publish(ctx, events.SubjectRunFinished, events.RunFinished{
		GoalID:   g.ID,
		Success:  false,
		Attempts: r.config.MaxRetryAttempts,
		At:       time.Now(),
	})

	return lastResult, fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, r.config.MaxRetryAttempts)
}

// recordAttempt persists attempt history when a recorder is configured.
// Failures are logged, never propagated.
func (r *Runner) recordAttempt(ctx context.Context, goalID string, attempt *plan.Attempt) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordAttempt(ctx, goalID, attempt); err != nil {
		r.logger.Warn("Failed to record attempt",
			"goal", goalID,
			"attempt", attempt.Index,
			"error", err)
	}
}

// sleepCtx blocks for d, honoring context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
