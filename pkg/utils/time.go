package utils

import "time"

// Now returns current time (swappable for deterministic tests)
var Now = time.Now

// FormatTimestamp formats a timestamp in ISO 8601 format
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
