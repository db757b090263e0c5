// Package events publishes execution-loop lifecycle events over NATS so
// external observers (UI, audit) can follow runs without polling storage.
// A nil *Publisher degrades gracefully: every method is a no-op.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for run lifecycle events.
const (
	SubjectRunStarted       = "atlas.run.started"
	SubjectAttemptCompleted = "atlas.run.attempt"
	SubjectRegenerated      = "atlas.run.regenerated"
	SubjectRunFinished      = "atlas.run.finished"
)

// RunStarted announces a new execution loop for a goal.
type RunStarted struct {
	GoalID      string    `json:"goal_id"`
	PlanID      string    `json:"plan_id"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

// AttemptCompleted reports one finished execution attempt.
type AttemptCompleted struct {
	GoalID     string    `json:"goal_id"`
	Attempt    int       `json:"attempt"`
	Success    bool      `json:"success"`
	Achieved   bool      `json:"achieved"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Regenerated reports one self-regeneration pass between attempts.
type Regenerated struct {
	GoalID       string    `json:"goal_id"`
	Attempt      int       `json:"attempt"`
	IssuesFound  int       `json:"issues_found"`
	FixesApplied int       `json:"fixes_applied"`
	SystemHealth string    `json:"system_health"`
	At           time.Time `json:"at"`
}

// RunFinished reports the terminal state of a run.
type RunFinished struct {
	GoalID   string    `json:"goal_id"`
	Success  bool      `json:"success"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
}

// Publisher publishes lifecycle events to NATS.
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a publisher over an established NATS connection.
func NewPublisher(nc *nats.Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, logger: logger}
}

// Publish marshals the payload and publishes it on the subject.
// Failures are logged, never propagated: event delivery must not affect the
// execution loop.
func (p *Publisher) Publish(_ context.Context, subject string, payload any) {
	if p == nil || p.nc == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to marshal event", "subject", subject, "error", err)
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish event", "subject", subject, "error", err)
	}
}

// Flush waits for buffered events to reach the server, bounded by timeout.
func (p *Publisher) Flush(timeout time.Duration) error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := p.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}
