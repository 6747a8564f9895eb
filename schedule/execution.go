package schedule

// Execution records a single execution attempt of a scheduled post.
//
// Jobs themselves only hold the last-known outcome; executions keep the
// full attempt history for debugging and audit.
type Execution struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`

	Status string `json:"status"` // "running", "completed", "failed"

	StartedAt   string  `json:"started_at"`             // RFC3339 timestamp
	CompletedAt *string `json:"completed_at,omitempty"` // null while running
	DurationMs  *int    `json:"duration_ms,omitempty"`  // null while running

	ExternalID   *string `json:"external_id,omitempty"`   // platform post id on success
	ErrorMessage *string `json:"error_message,omitempty"` // error if failed

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Execution status constants.
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)
