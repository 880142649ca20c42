package site

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	s := Site{ID: "a", Scores: Scores{Overall: 71, Demand: 62, Equity: 55, Traffic: 90, Grid: 50}}

	tests := []struct {
		metric Metric
		want   float64
	}{
		{MetricOverall, 71},
		{MetricDemand, 62},
		{MetricEquity, 55},
		{MetricTraffic, 90},
		{MetricGrid, 50},
	}
	for _, tc := range tests {
		got, err := Resolve(s, tc.metric)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.metric)
	}
}

func TestResolveUnknownMetric(t *testing.T) {
	_, err := Resolve(Site{}, Metric("bogus"))
	require.Error(t, err)
	require.True(t, IsInvalidMetric(err))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("score_traffic")
	require.NoError(t, err)
	require.Equal(t, MetricTraffic, m)

	m, err = ParseMetric(" Equity ")
	require.NoError(t, err)
	require.Equal(t, MetricEquity, m)

	_, err = ParseMetric("amenities")
	require.True(t, IsInvalidMetric(err))
}
