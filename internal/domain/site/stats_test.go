package site

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	sites := []Site{
		{ID: "a", Scores: Scores{Overall: 40}, DailyKwhEstimate: 100},
		{ID: "b", Scores: Scores{Overall: 90}, DailyKwhEstimate: 250.4},
		{ID: "c", Scores: Scores{Overall: 65.25}, DailyKwhEstimate: 150},
	}

	stats, err := ComputeStats("worcester", sites, 2)
	require.NoError(t, err)
	require.Equal(t, "worcester", stats.City)
	require.Equal(t, 3, stats.TotalSites)
	require.Equal(t, ScoreStats{Min: 40, Max: 90, Mean: 65.1}, stats.Score)
	require.Equal(t, 500.0, stats.Demand.TotalDailyKwh)
	require.Equal(t, 166.8, stats.Demand.MeanDailyKwh)
	require.Equal(t, []string{"b", "c"}, ids(stats.TopSites))
}

func TestComputeStatsEmpty(t *testing.T) {
	stats, err := ComputeStats("boston", nil, DefaultTopN)
	require.NoError(t, err)
	require.Zero(t, stats.TotalSites)
	require.Empty(t, stats.TopSites)
}
