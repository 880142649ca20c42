package util

import (
	"strings"
	"time"
)

// Clock is injected wherever expiry logic needs a controllable time source.
type Clock func() time.Time

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// ParseDurationOr parses raw, returning fallback when raw is blank or malformed.
// Negative durations are treated as zero.
func ParseDurationOr(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	if d < 0 {
		return 0
	}
	return d
}

// ClampDuration bounds d to [0, max].
func ClampDuration(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}
