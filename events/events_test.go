package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn starts an embedded NATS server and returns a client connection.
func newTestConn(t *testing.T) *nats.Conn {
	t.Helper()

	opts := &server.Options{
		Port:   -1, // Random available port
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

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
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	return conn
}

func TestPublisherDeliversEvents(t *testing.T) {
	conn := newTestConn(t)

	sub, err := conn.SubscribeSync(SubjectAttemptCompleted)
	require.NoError(t, err)

	p := NewPublisher(conn, nil)

	event := AttemptCompleted{
		GoalID:     "goal-1",
		Attempt:    2,
		Success:    false,
		Achieved:   false,
		Error:      "tool timeout",
		DurationMs: 1200,
		At:         time.Now(),
	}
	p.Publish(context.Background(), SubjectAttemptCompleted, event)
	require.NoError(t, p.Flush(2*time.Second))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)

	var received AttemptCompleted
	require.NoError(t, json.Unmarshal(msg.Data, &received))
	assert.Equal(t, "goal-1", received.GoalID)
	assert.Equal(t, 2, received.Attempt)
	assert.Equal(t, "tool timeout", received.Error)
	assert.Equal(t, int64(1200), received.DurationMs)
}

func TestPublisherRunLifecycleSubjects(t *testing.T) {
	conn := newTestConn(t)

	sub, err := conn.SubscribeSync("atlas.run.>")
	require.NoError(t, err)

	p := NewPublisher(conn, nil)
	ctx := context.Background()

	p.Publish(ctx, SubjectRunStarted, RunStarted{GoalID: "g", PlanID: "p", StartedAt: time.Now()})
	p.Publish(ctx, SubjectRegenerated, Regenerated{GoalID: "g", Attempt: 1, SystemHealth: "repaired", At: time.Now()})
	p.Publish(ctx, SubjectRunFinished, RunFinished{GoalID: "g", Success: true, Attempts: 2, At: time.Now()})
	require.NoError(t, p.Flush(2*time.Second))

	subjects := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		msg, err := sub.NextMsg(2 * time.Second)
		require.NoError(t, err)
		subjects = append(subjects, msg.Subject)
	}

	assert.Equal(t, []string{SubjectRunStarted, SubjectRegenerated, SubjectRunFinished}, subjects)
}

func TestPublisherNilSafe(t *testing.T) {
	var p *Publisher

	// A nil publisher drops events silently.
	p.Publish(context.Background(), SubjectRunStarted, RunStarted{GoalID: "g"})
	assert.NoError(t, p.Flush(time.Second))

	// Same for a publisher with no connection.
	p = NewPublisher(nil, nil)
	p.Publish(context.Background(), SubjectRunStarted, RunStarted{GoalID: "g"})
	assert.NoError(t, p.Flush(time.Second))
}
