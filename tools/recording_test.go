package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg121203/atlas-core/plan"
)

// channelRecorder delivers records through a channel so tests can wait for
// the asynchronous recording goroutine.
type channelRecorder struct {
	records chan *CallRecord
	err     error
}

func newChannelRecorder() *channelRecorder {
	return &channelRecorder{records: make(chan *CallRecord, 1)}
}

func (c *channelRecorder) RecordToolCall(_ context.Context, record *CallRecord) error {
	c.records <- record
	return c.err
}

func (c *channelRecorder) wait(t *testing.T) *CallRecord {
	t.Helper()
	select {
	case record := <-c.records:
		return record
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call record")
		return nil
	}
}

func TestRecordingExecutorSuccess(t *testing.T) {
	recorder := newChannelRecorder()
	inner := &staticExecutor{
		defs:   []Definition{{Name: "memory_set"}},
		result: plan.Result{Success: true, Message: "stored"},
	}

	rec := NewRecordingExecutor(inner, recorder, nil)

	call := Call{ID: "call-1", Name: "memory_set", Arguments: map[string]any{"key": "k", "value": 1}}
	result, err := rec.Execute(context.Background(), call)
	require.NoError(t, err)
	assert.True(t, result.Success)

	record := recorder.wait(t)
	assert.Equal(t, "call-1", record.CallID)
	assert.Equal(t, "memory_set", record.ToolName)
	assert.Equal(t, "success", record.Status)
	assert.Empty(t, record.Error)
	assert.Contains(t, record.Parameters, `"key":"k"`)
	assert.Equal(t, "stored", record.Result)
	assert.False(t, record.StartedAt.IsZero())
	assert.False(t, record.CompletedAt.IsZero())
}

func TestRecordingExecutorSoftFailure(t *testing.T) {
	recorder := newChannelRecorder()
	inner := &staticExecutor{result: plan.Result{Success: false, Error: "key missing"}}

	rec := NewRecordingExecutor(inner, recorder, nil)

	result, err := rec.Execute(context.Background(), Call{ID: "call-2", Name: "memory_get"})
	require.NoError(t, err)
	assert.False(t, result.Success)

	record := recorder.wait(t)
	assert.Equal(t, "error", record.Status)
	assert.Equal(t, "key missing", record.Error)
}

func TestRecordingExecutorHardError(t *testing.T) {
	recorder := newChannelRecorder()
	inner := &staticExecutor{err: errors.New("boom")}

	rec := NewRecordingExecutor(inner, recorder, nil)

	_, err := rec.Execute(context.Background(), Call{ID: "call-3", Name: "web_fetch"})
	require.Error(t, err)

	record := recorder.wait(t)
	assert.Equal(t, "error", record.Status)
	assert.Equal(t, "boom", record.Error)
}

func TestRecordingExecutorNilRecorder(t *testing.T) {
	inner := &staticExecutor{result: plan.Result{Success: true, Message: "ok"}}
	rec := NewRecordingExecutor(inner, nil, nil)

	result, err := rec.Execute(context.Background(), Call{Name: "memory_set"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRecordingExecutorDelegatesListTools(t *testing.T) {
	inner := &staticExecutor{defs: []Definition{{Name: "a"}, {Name: "b"}}}
	rec := NewRecordingExecutor(inner, nil, nil)

	assert.Len(t, rec.ListTools(), 2)
}

func TestTruncateJSON(t *testing.T) {
	short := truncateJSON(map[string]any{"k": "v"}, 100)
	assert.Equal(t, `{"k":"v"}`, short)

	long := truncateJSON(map[string]any{"k": strings.Repeat("x", 200)}, 50)
	assert.Len(t, long, 53) // 50 chars plus "..."
	assert.True(t, strings.HasSuffix(long, "..."))
}
