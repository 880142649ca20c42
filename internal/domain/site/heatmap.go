package site

import "math"

// Bucket is one of the five discrete colour classes of the map legend.
type Bucket int

const (
	Bucket1 Bucket = iota + 1
	Bucket2
	Bucket3
	Bucket4
	Bucket5
)

var bucketColors = map[Bucket]string{
	Bucket5: "#15803d",
	Bucket4: "#84cc16",
	Bucket3: "#eab308",
	Bucket2: "#f97316",
	Bucket1: "#ef4444",
}

// Color returns the fill colour used for markers in the bucket.
func (b Bucket) Color() string {
	if c, ok := bucketColors[b]; ok {
		return c
	}
	return bucketColors[Bucket1]
}

// Intensity maps a score onto [0,1] for heat-layer weighting.
func Intensity(score float64) float64 {
	return clampScore(score) / 100
}

// ColorBucket classifies a score. Each breakpoint is inclusive on its lower bound.
func ColorBucket(score float64) Bucket {
	s := clampScore(score)
	switch {
	case s >= 80:
		return Bucket5
	case s >= 60:
		return Bucket4
	case s >= 40:
		return Bucket3
	case s >= 20:
		return Bucket2
	default:
		return Bucket1
	}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

// HeatLayerOptions are the rendering hints handed to the map's heat layer.
type HeatLayerOptions struct {
	Radius     int               `json:"radius"`
	Blur       int               `json:"blur"`
	MinOpacity float64           `json:"minOpacity"`
	MaxZoom    int               `json:"maxZoom"`
	Gradient   map[string]string `json:"gradient"`
}

// DefaultHeatLayer returns the heat-layer styling used by the explorer map.
func DefaultHeatLayer() HeatLayerOptions {
	return HeatLayerOptions{
		Radius:     24,
		Blur:       18,
		MinOpacity: 0.25,
		MaxZoom:    14,
		Gradient: map[string]string{
			"0.2":  "#1d4ed8",
			"0.5":  "#16a34a",
			"0.75": "#f59e0b",
			"1.0":  "#dc2626",
		},
	}
}
