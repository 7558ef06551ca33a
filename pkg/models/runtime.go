package models

// RuntimeStatus is the ephemeral, per-process phase indicator advertised by
// the voice-agent bridge. It is never persisted; see pkg/runtimecache.
type RuntimeStatus string

// Runtime status values.
const (
	RuntimeIdle       RuntimeStatus = "idle"
	RuntimeProcessing RuntimeStatus = "processing"
	RuntimeCompleting RuntimeStatus = "completing"
	RuntimeCompleted  RuntimeStatus = "completed"
	RuntimeError      RuntimeStatus = "error"
)

// ValidRuntimeStatus reports whether s is a known runtime status.
func ValidRuntimeStatus(s RuntimeStatus) bool {
	switch s {
	case RuntimeIdle, RuntimeProcessing, RuntimeCompleting, RuntimeCompleted, RuntimeError:
		return true
	}
	return false
}
