// Package schedule owns scheduled post jobs: persistence, dispatch, and
// the daemon ticker that executes them at their due time.
package schedule

import (
	"time"

	"github.com/teranos/socialia/post"
)

// Job is one scheduled social-media post with its lifecycle state.
type Job struct {
	ID            string
	Platform      post.Platform
	Payload       post.Payload
	DueAt         time.Time
	OriginalDueAt *time.Time // pre-jitter due time, set when fluctuation was applied
	State         string
	ResultID      string // platform-assigned post id (terminal posted)
	ResultURL     string // platform post URL (terminal posted)
	Error         string // failure or cancellation reason (terminal failed/cancelled)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// State constants for scheduled jobs.
// Transitions are monotonic: pending → running → {posted, failed},
// or pending → cancelled. Terminal states are final.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StatePosted    = "posted"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// IsTerminal reports whether a state permits no further transitions.
func IsTerminal(state string) bool {
	switch state {
	case StatePosted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}
