package site

import "strings"

// Metric names one of the score dimensions a site carries.
type Metric string

const (
	MetricOverall Metric = "overall"
	MetricDemand  Metric = "demand"
	MetricEquity  Metric = "equity"
	MetricTraffic Metric = "traffic"
	MetricGrid    Metric = "grid"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricOverall, MetricDemand, MetricEquity, MetricTraffic, MetricGrid}

// ParseMetric accepts both the bare key and the "score_" prefixed column form.
func ParseMetric(raw string) (Metric, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "score_")
	m := Metric(key)
	if !m.Valid() {
		return "", InvalidMetricError(raw)
	}
	return m, nil
}

// Valid reports whether m is one of the declared metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricOverall, MetricDemand, MetricEquity, MetricTraffic, MetricGrid:
		return true
	}
	return false
}

// Label is the title used by list and legend surfaces.
func (m Metric) Label() string {
	switch m {
	case MetricOverall:
		return "Overall"
	case MetricDemand:
		return "Demand"
	case MetricEquity:
		return "Equity"
	case MetricTraffic:
		return "Traffic"
	case MetricGrid:
		return "Grid"
	}
	return string(m)
}

// Resolve returns the score of s for metric. Adding a metric means adding a case here.
func Resolve(s Site, metric Metric) (float64, error) {
	switch metric {
	case MetricOverall:
		return s.Scores.Overall, nil
	case MetricDemand:
		return s.Scores.Demand, nil
	case MetricEquity:
		return s.Scores.Equity, nil
	case MetricTraffic:
		return s.Scores.Traffic, nil
	case MetricGrid:
		return s.Scores.Grid, nil
	}
	return 0, InvalidMetricError(string(metric))
}
