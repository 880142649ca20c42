package explorer

import (
	"time"

	"github.com/yanqian/chargemap/internal/domain/site"
)

// Config holds runtime knobs for exploration sessions.
type Config struct {
	DefaultFilter site.FilterConfig
	TopN          int
	SessionTTL    time.Duration
	MaxSessions   int
	// SourceName labels load statistics, e.g. "api" or "postgres".
	SourceName string
}

func (c Config) withDefaults() Config {
	if c.DefaultFilter.Metric == "" {
		c.DefaultFilter = site.DefaultFilterConfig()
	}
	if c.DefaultFilter.Threshold == "" {
		c.DefaultFilter.Threshold = site.ThresholdOverall
	}
	if c.TopN <= 0 {
		c.TopN = site.DefaultTopN
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
	}
	if c.SourceName == "" {
		c.SourceName = "repository"
	}
	return c
}
