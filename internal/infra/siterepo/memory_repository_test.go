package siterepo

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
)

const fixture = `{
	"cities": [
		{"slug":"worcester","name":"Worcester","state":"MA","bbox":[-71.88,42.21,-71.73,42.34]},
		{"slug":"lowell","name":"Lowell","bbox":{"west":-71.4,"south":42.6,"east":-71.2,"north":42.7}}
	],
	"sites": {
		"worcester": [
			{"id":"w1","lat":42.26,"lng":-71.80,"score_overall":88,"score_demand":70,"score_equity":60,"score_traffic":50,"score_grid":40,"daily_kwh_estimate":200,"features":{"traffic_index":0.8},"notes":["Busy"]},
			{"id":"w2","lat":42.30,"lng":-71.76,"score_overall":45,"score_demand":30,"score_equity":20,"score_traffic":10,"score_grid":5,"daily_kwh_estimate":20}
		]
	}
}`

func TestParseFixture(t *testing.T) {
	repo, err := ParseFixture([]byte(fixture))
	require.NoError(t, err)
	ctx := context.Background()

	cities, err := repo.LoadCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 2)

	sites, err := repo.LoadSites(ctx, "worcester")
	require.NoError(t, err)
	require.Len(t, sites, 2)

	sites, err = repo.LoadSites(ctx, "lowell")
	require.NoError(t, err)
	require.NotNil(t, sites)
	require.Empty(t, sites)

	_, err = repo.LoadSites(ctx, "boston")
	require.True(t, site.IsNotFound(err))

	detail, err := repo.LoadSiteDetail(ctx, "worcester", "w1")
	require.NoError(t, err)
	require.Equal(t, []string{"Busy"}, detail.Notes)
	require.Equal(t, 0.8, detail.Features["traffic_index"])

	_, err = repo.LoadSiteDetail(ctx, "worcester", "nope")
	require.True(t, site.IsNotFound(err))
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo, err := ParseFixture([]byte(fixture))
	require.NoError(t, err)
	sites, _ := repo.LoadSites(context.Background(), "worcester")
	sites[0].ID = "mutated"
	again, _ := repo.LoadSites(context.Background(), "worcester")
	require.Equal(t, "w1", again[0].ID)
}

func TestMemoryRepositoryHonoursCancellation(t *testing.T) {
	repo, err := ParseFixture([]byte(fixture))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.LoadSiteDetail(ctx, "worcester", "w1")
	require.True(t, site.IsNetwork(err))
}

func TestParseFixtureRejectsMalformed(t *testing.T) {
	_, err := ParseFixture([]byte(`{"cities":[{"slug":"x","bbox":[0,0,1,1]}],"sites":{"x":[{"id":"a"}]}}`))
	require.True(t, site.IsDecode(err))
}

func TestLoadShippedFixture(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path := filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", "fixtures", "sites.json")

	repo, err := LoadFixture(path)
	require.NoError(t, err)
	sites, err := repo.LoadSites(context.Background(), "worcester")
	require.NoError(t, err)
	require.NotEmpty(t, sites)
}
