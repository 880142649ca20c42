package site

import "math"

// ScoreStats summarises overall scores of a collection.
type ScoreStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// DemandStats summarises estimated daily energy demand.
type DemandStats struct {
	TotalDailyKwh float64 `json:"totalDailyKwh"`
	MeanDailyKwh  float64 `json:"meanDailyKwh"`
}

// CityStats is the roll-up shown above a city's site list.
type CityStats struct {
	City       string      `json:"city"`
	TotalSites int         `json:"totalSites"`
	Score      ScoreStats  `json:"scoreStats"`
	Demand     DemandStats `json:"demandStats"`
	TopSites   []Site      `json:"topSites"`
}

// ComputeStats aggregates a city's collection. Top sites are ranked by overall score.
func ComputeStats(citySlug string, sites []Site, topN int) (CityStats, error) {
	top, err := Rank(sites, MetricOverall, topN)
	if err != nil {
		return CityStats{}, err
	}
	stats := CityStats{
		City:       citySlug,
		TotalSites: len(sites),
		TopSites:   top,
	}
	if len(sites) == 0 {
		return stats, nil
	}

	minScore, maxScore := math.Inf(1), math.Inf(-1)
	var scoreSum, kwhSum float64
	for _, s := range sites {
		minScore = math.Min(minScore, s.Scores.Overall)
		maxScore = math.Max(maxScore, s.Scores.Overall)
		scoreSum += s.Scores.Overall
		kwhSum += s.DailyKwhEstimate
	}
	n := float64(len(sites))
	stats.Score = ScoreStats{
		Min:  round1(minScore),
		Max:  round1(maxScore),
		Mean: round1(scoreSum / n),
	}
	stats.Demand = DemandStats{
		TotalDailyKwh: math.Round(kwhSum),
		MeanDailyKwh:  round1(kwhSum / n),
	}
	return stats, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
