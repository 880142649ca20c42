package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
)

func testSites() []site.Site {
	return []site.Site{
		{ID: "downtown", Lat: 42.2626, Lng: -71.8023},
		{ID: "north", Lat: 42.33, Lng: -71.80},
		{ID: "west", Lat: 42.26, Lng: -71.92},
		{ID: "edge", Lat: 42.30, Lng: -71.75},
	}
}

func TestWithin(t *testing.T) {
	idx := NewIndex(testSites())
	require.Equal(t, 4, idx.Size())

	got, err := idx.Within(site.BoundingBox{West: -71.85, South: 42.20, East: -71.75, North: 42.30})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Contains(t, got, "downtown")
	require.Contains(t, got, "edge")
}

func TestWithinEmptyAndInverted(t *testing.T) {
	idx := NewIndex(nil)
	got, err := idx.Within(site.BoundingBox{West: -72, South: 42, East: -71, North: 43})
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = idx.Within(site.BoundingBox{West: -71, South: 43, East: -72, North: 42})
	require.True(t, site.IsInvalidArgument(err))
}

func TestNearest(t *testing.T) {
	idx := NewIndex(testSites())
	id, ok := idx.Nearest(42.329, -71.801)
	require.True(t, ok)
	require.Equal(t, "north", id)

	_, ok = NewIndex(nil).Nearest(0, 0)
	require.False(t, ok)
}
