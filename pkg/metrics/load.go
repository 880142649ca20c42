package metrics

import "time"

// LoadStats describes how a collection reached the caller.
type LoadStats struct {
	Source     string `json:"source"`
	CacheHit   bool   `json:"cacheHit"`
	Items      int    `json:"items"`
	DurationMs int64  `json:"durationMs"`
}

// Stopwatch measures one load.
type Stopwatch struct {
	start time.Time
	now   func() time.Time
}

// Start begins timing.
func Start() Stopwatch {
	return Stopwatch{start: time.Now(), now: time.Now}
}

// Stop returns LoadStats with the elapsed time filled in.
func (s Stopwatch) Stop(source string, items int, cacheHit bool) LoadStats {
	now := s.now
	if now == nil {
		now = time.Now
	}
	return LoadStats{
		Source:     source,
		CacheHit:   cacheHit,
		Items:      items,
		DurationMs: now().Sub(s.start).Milliseconds(),
	}
}
