package site

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntensityBoundsAndClamping(t *testing.T) {
	require.Equal(t, 1.0, Intensity(100))
	require.Equal(t, Intensity(100), Intensity(150))
	require.Equal(t, 0.0, Intensity(0))
	require.Equal(t, Intensity(0), Intensity(-10))
	require.Equal(t, 0.0, Intensity(math.NaN()))
	require.InDelta(t, 0.42, Intensity(42), 1e-9)
}

func TestIntensityMonotonic(t *testing.T) {
	prev := Intensity(-50)
	for score := -50.0; score <= 200; score += 0.5 {
		got := Intensity(score)
		require.GreaterOrEqual(t, got, prev)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

func TestColorBucketBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Bucket
	}{
		{100, Bucket5},
		{80, Bucket5},
		{79.999, Bucket4},
		{60, Bucket4},
		{59.99, Bucket3},
		{40, Bucket3},
		{39.5, Bucket2},
		{20, Bucket2},
		{19.999, Bucket1},
		{0, Bucket1},
		{-5, Bucket1},
		{250, Bucket5},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ColorBucket(tc.score), "score %v", tc.score)
	}
}

func TestBucketColor(t *testing.T) {
	require.Equal(t, "#15803d", Bucket5.Color())
	require.Equal(t, "#ef4444", Bucket1.Color())
	require.Equal(t, "#ef4444", Bucket(0).Color())
}
