package replay

import "strings"

// TraceEnvVar enables per-step trace output when set to a true value.
const TraceEnvVar = "BLOCK_REPLAY_TRACE"

// IsTraceEnabled reports whether envValue turns tracing on.
func IsTraceEnabled(envValue string) bool {
	switch strings.ToLower(envValue) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
