package storage

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/oleg121203/atlas-core/plan"
	"github.com/oleg121203/atlas-core/tools"
)

// newTestStore starts an embedded NATS server with JetStream and returns a
// Store backed by it.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	opts := &server.Options{
		Port:      -1, // Random available port
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("create embedded NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("embedded NATS server failed to start")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect to embedded NATS: %v", err)
	}
	t.Cleanup(conn.Close)

	js, err := jetstream.New(conn)
	if err != nil {
		t.Fatalf("create JetStream context: %v", err)
	}

	store, err := NewStore(context.Background(), js)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestStoreGoalRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g, err := plan.NewGoal("check email", map[string]string{"email": "inbox read"})
	if err != nil {
		t.Fatalf("new goal: %v", err)
	}

	if err := store.SaveGoal(ctx, g); err != nil {
		t.Fatalf("save goal: %v", err)
	}

	got, err := store.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got.Description != g.Description {
		t.Errorf("description = %q, want %q", got.Description, g.Description)
	}
	if got.Criteria["email"] != "inbox read" {
		t.Errorf("criteria = %v", got.Criteria)
	}

	goals, err := store.ListGoals(ctx)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goals) != 1 {
		t.Errorf("goals = %d, want 1", len(goals))
	}
}

func TestStoreGoalNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetGoal(context.Background(), "no-such-goal")
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStorePlanByGoal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g, err := plan.NewGoal("check email", nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := plan.NewPlan(g.ID, "read the inbox")
	if err != nil {
		t.Fatal(err)
	}
	p.Phases = []plan.Phase{{
		Name:  "fetch",
		Steps: []plan.Step{{Sequence: 1, Description: "read", Tool: "email_read"}},
	}}

	if err := store.SavePlan(ctx, p); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	got, err := store.GetPlanByGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("get plan by goal: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("plan ID = %q, want %q", got.ID, p.ID)
	}
	if got.Objective != "read the inbox" {
		t.Errorf("objective = %q", got.Objective)
	}

	if _, err := store.GetPlanByGoal(ctx, "other-goal"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreAttemptsOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	goalID := "goal-1"
	for _, idx := range []int{2, 0, 1} {
		attempt := &plan.Attempt{
			Index:  idx,
			Result: &plan.Result{Success: idx == 2},
		}
		if err := store.RecordAttempt(ctx, goalID, attempt); err != nil {
			t.Fatalf("record attempt %d: %v", idx, err)
		}
	}
	// Attempts for another goal must not leak in
	if err := store.RecordAttempt(ctx, "goal-2", &plan.Attempt{Index: 0}); err != nil {
		t.Fatal(err)
	}

	attempts, err := store.ListAttempts(ctx, goalID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a.Index != i {
			t.Errorf("attempts[%d].Index = %d, want %d", i, a.Index, i)
		}
	}
	if !attempts[2].Result.Success {
		t.Error("attempts[2] should carry the successful result")
	}
}

func TestStoreToolCallRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := &tools.CallRecord{
		CallID:     "call-1",
		ToolName:   "file_read",
		Parameters: `{"path":"notes.txt"}`,
		Status:     "success",
		DurationMs: 12,
	}
	if err := store.RecordToolCall(ctx, record); err != nil {
		t.Fatalf("record tool call: %v", err)
	}

	// An empty call ID gets a generated key instead of failing
	if err := store.RecordToolCall(ctx, &tools.CallRecord{ToolName: "file_write", Status: "error"}); err != nil {
		t.Fatalf("record tool call without ID: %v", err)
	}
}
