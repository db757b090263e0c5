package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oleg121203/atlas-core/plan"
)

// MaxRecordedParamsLength is the max length for serialized parameters stored in a record.
const MaxRecordedParamsLength = 1000

// MaxRecordedResultLength is the max length for result content stored in a record.
const MaxRecordedResultLength = 2000

// CallRecord captures one tool invocation for later inspection.
type CallRecord struct {
	CallID      string    `json:"call_id"`
	ToolName    string    `json:"tool_name"`
	Parameters  string    `json:"parameters,omitempty"`
	Result      string    `json:"result,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// CallRecorder persists tool call records. Implemented by storage.Store.
type CallRecorder interface {
	RecordToolCall(ctx context.Context, record *CallRecord) error
}

// RecordingExecutor wraps an Executor and records each call to a CallRecorder.
// A nil recorder passes calls through transparently.
type RecordingExecutor struct {
	inner    Executor
	recorder CallRecorder
	logger   *slog.Logger
}

// NewRecordingExecutor wraps an executor with tool call recording.
func NewRecordingExecutor(inner Executor, recorder CallRecorder, logger *slog.Logger) *RecordingExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingExecutor{
		inner:    inner,
		recorder: recorder,
		logger:   logger,
	}
}

// Execute runs the underlying tool executor and records the call.
func (r *RecordingExecutor) Execute(ctx context.Context, call Call) (plan.Result, error) {
	startedAt := time.Now()

	result, execErr := r.inner.Execute(ctx, call)

	completedAt := time.Now()

	// Record asynchronously to avoid slowing down tool execution
	go r.recordCall(call, result, execErr, startedAt, completedAt)

	return result, execErr
}

// ListTools delegates to the inner executor.
func (r *RecordingExecutor) ListTools() []Definition {
	return r.inner.ListTools()
}

func (r *RecordingExecutor) recordCall(call Call, result plan.Result, execErr error, startedAt, completedAt time.Time) {
	if r.recorder == nil {
		return // Recording disabled
	}

	status := "success"
	var errMsg string
	if execErr != nil {
		status = "error"
		errMsg = execErr.Error()
	} else if !result.Success {
		status = "error"
		errMsg = result.Error
	}

	resultPreview := result.Message
	if len(resultPreview) > MaxRecordedResultLength {
		resultPreview = resultPreview[:MaxRecordedResultLength] + "..."
	}

	record := &CallRecord{
		CallID:      call.ID,
		ToolName:    call.Name,
		Parameters:  truncateJSON(call.Arguments, MaxRecordedParamsLength),
		Result:      resultPreview,
		Status:      status,
		Error:       errMsg,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.recorder.RecordToolCall(ctx, record); err != nil {
		r.logger.Warn("Failed to record tool call",
			"tool", call.Name,
			"call_id", call.ID,
			"error", err)
	}
}

// truncateJSON serializes v and truncates the output to maxLen.
func truncateJSON(v any, maxLen int) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
