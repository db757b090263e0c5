// Package storage persists goals, plans, attempt history and tool call
// records in NATS KV buckets.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// Bucket names for each entity type.
const (
	BucketGoals     = "ATLAS_GOALS"
	BucketPlans     = "ATLAS_PLANS"
	BucketAttempts  = "ATLAS_ATTEMPTS"
	BucketToolCalls = "ATLAS_TOOL_CALLS"
)

// Store provides entity storage operations backed by NATS KV.
type Store struct {
	goals     jetstream.KeyValue
	plans     jetstream.KeyValue
	attempts  jetstream.KeyValue
	toolCalls jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	goals, err := getOrCreateBucket(ctx, js, BucketGoals)
	if err != nil {
		return nil, fmt.Errorf("create goals bucket: %w", err)
	}

	plans, err := getOrCreateBucket(ctx, js, BucketPlans)
	if err != nil {
		return nil, fmt.Errorf("create plans bucket: %w", err)
	}

	attempts, err := getOrCreateBucket(ctx, js, BucketAttempts)
	if err != nil {
		return nil, fmt.Errorf("create attempts bucket: %w", err)
	}

	toolCalls, err := getOrCreateBucket(ctx, js, BucketToolCalls)
	if err != nil {
		return nil, fmt.Errorf("create tool calls bucket: %w", err)
	}

	return &Store{
		goals:     goals,
		plans:     plans,
		attempts:  attempts,
		toolCalls: toolCalls,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Atlas %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
	})
}

// SaveGoal stores a goal under its ID.
func (s *Store) SaveGoal(ctx context.Context, g *plan.Goal) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal goal: %w", err)
	}
	if _, err := s.goals.Put(ctx, g.ID, data); err != nil {
		return fmt.Errorf("store goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by ID.
func (s *Store) GetGoal(ctx context.Context, id string) (*plan.Goal, error) {
	entry, err := s.goals.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}

	var g plan.Goal
	if err := json.Unmarshal(entry.Value(), &g); err != nil {
		return nil, fmt.Errorf("unmarshal goal: %w", err)
	}
	return &g, nil
}

// ListGoals returns all stored goals.
func (s *Store) ListGoals(ctx context.Context) ([]*plan.Goal, error) {
	keys, err := s.goals.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list goal keys: %w", err)
	}

	goals := make([]*plan.Goal, 0, len(keys))
	for _, key := range keys {
		entry, err := s.goals.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var g plan.Goal
		if err := json.Unmarshal(entry.Value(), &g); err != nil {
			continue
		}
		goals = append(goals, &g)
	}

	return goals, nil
}

// SavePlan stores a plan under its ID.
func (s *Store) SavePlan(ctx context.Context, p *plan.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if _, err := s.plans.Put(ctx, p.ID, data); err != nil {
		return fmt.Errorf("store plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	entry, err := s.plans.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var p plan.Plan
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &p, nil
}

// GetPlanByGoal retrieves the plan built for a goal.
func (s *Store) GetPlanByGoal(ctx context.Context, goalID string) (*plan.Plan, error) {
	keys, err := s.plans.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list plan keys: %w", err)
	}

	for _, key := range keys {
		entry, err := s.plans.Get(ctx, key)
		if err != nil {
			continue
		}
		var p plan.Plan
		if err := json.Unmarshal(entry.Value(), &p); err != nil {
			continue
		}
		if p.GoalID == goalID {
			return &p, nil
		}
	}

	return nil, ErrNotFound
}

// RecordAttempt stores one attempt of a goal's run, keyed by goal ID and
// attempt index. Implements the loop's attempt recorder.
func (s *Store) RecordAttempt(ctx context.Context, goalID string, attempt *plan.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	key := fmt.Sprintf("%s.%d", goalID, attempt.Index)
	if _, err := s.attempts.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a goal's attempts ordered by index.
func (s *Store) ListAttempts(ctx context.Context, goalID string) ([]*plan.Attempt, error) {
	keys, err := s.attempts.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list attempt keys: %w", err)
	}

	attempts := make([]*plan.Attempt, 0)
	prefix := goalID + "."
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.attempts.Get(ctx, key)
		if err != nil {
			continue
		}
		var a plan.Attempt
		if err := json.Unmarshal(entry.Value(), &a); err != nil {
			continue
		}
		attempts = append(attempts, &a)
	}

	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].Index < attempts[j].Index
	})
	return attempts, nil
}

// RecordToolCall stores one tool invocation record. Implements
// tools.CallRecorder.
func (s *Store) RecordToolCall(ctx context.Context, record *tools.CallRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal tool call: %w", err)
	}

	key := record.CallID
	if key == "" {
		key = uuid.New().String()
	}
	if _, err := s.toolCalls.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store tool call: %w", err)
	}
	return nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
