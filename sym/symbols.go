// Package sym defines canonical status glyphs used across the Socialia
// CLI and logs. Keeping them in one place keeps output consistent
// between the schedule table, the daemon log, and the MCP tools.
package sym

// Job state glyphs.
const (
	Pending   = "⏳"
	Running   = "⚙"
	Posted    = "✅"
	Failed    = "💥"
	Cancelled = "❌"
)

// System markers.
const (
	Pulse = "✻" // daemon heartbeat
	DB    = "⛁"
	Post  = "➤"
)

// ForState returns the glyph for a job state string; unknown states get
// a question mark so they remain visible rather than silently blank.
func ForState(state string) string {
	switch state {
	case "pending":
		return Pending
	case "running":
		return Running
	case "posted":
		return Posted
	case "failed":
		return Failed
	case "cancelled":
		return Cancelled
	default:
		return "❓"
	}
}
