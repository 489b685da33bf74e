package journal

import "time"

// Entry 是写入调试日志目录的单条记录，写入后不再修改。
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	UserInput      string    `json:"user_input"`
	SessionID      string    `json:"session_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Request        any       `json:"request"`
	Response       any       `json:"response,omitempty"`
	Error          string    `json:"error,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

// Exchange is one request/response round trip handed to the journal.
type Exchange struct {
	UserInput string
	SessionID string
	RequestID string
	Request   any
	Response  any
	Err       error
	Elapsed   time.Duration
}
