package plan

import "time"

// Result is the payload produced by one execution pass.
// Data holds the merged tool outputs; Message is a human-readable summary;
// Error carries the failure description when Success is false.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Empty reports whether the result carries neither data nor a message.
func (r *Result) Empty() bool {
	return len(r.Data) == 0 && r.Message == ""
}

// Attempt records one bounded pass of plan execution within the retry loop.
// A fresh Attempt is created per retry iteration.
type Attempt struct {
	Index       int       `json:"index"`
	Result      *Result   `json:"result,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}
