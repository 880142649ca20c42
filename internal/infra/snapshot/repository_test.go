package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/siterepo"
)

const fixture = `{
	"cities": [{"slug":"worcester","name":"Worcester","bbox":[-71.88,42.21,-71.73,42.34]}],
	"sites": {"worcester": [
		{"id":"w1","lat":42.26,"lng":-71.80,"score_overall":88,"score_demand":70,"score_equity":60,"score_traffic":50,"score_grid":40,"daily_kwh_estimate":200,"parking_lot_flag":1,"notes":["Busy"]},
		{"id":"w2","lat":42.30,"lng":-71.76,"score_overall":45,"score_demand":30,"score_equity":20,"score_traffic":10,"score_grid":5,"daily_kwh_estimate":20}
	]}
}`

func TestPublishThenRead(t *testing.T) {
	source, err := siterepo.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	objects := NewMemoryObjects()
	ctx := context.Background()

	n, err := Publish(ctx, source, objects, "/processed/")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = objects.Get(ctx, "processed/sites_worcester.json")
	require.NoError(t, err)

	repo := NewRepository(objects, "processed", nil)
	cities, err := repo.LoadCities(ctx)
	require.NoError(t, err)
	require.Equal(t, "worcester", cities[0].Slug)

	sites, err := repo.LoadSites(ctx, "worcester")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	require.True(t, sites[0].ParkingLot)

	detail, err := repo.LoadSiteDetail(ctx, "worcester", "w1")
	require.NoError(t, err)
	require.Equal(t, []string{"Busy"}, detail.Notes)

	_, err = repo.LoadSiteDetail(ctx, "worcester", "nope")
	require.True(t, site.IsNotFound(err))
}

func TestDetailLoadsSnapshotOnDemand(t *testing.T) {
	source, err := siterepo.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	objects := NewMemoryObjects()
	_, err = Publish(context.Background(), source, objects, "")
	require.NoError(t, err)

	repo := NewRepository(objects, "", nil)
	detail, err := repo.LoadSiteDetail(context.Background(), "worcester", "w2")
	require.NoError(t, err)
	require.Equal(t, 45.0, detail.Scores.Overall)

	require.NoError(t, repo.Invalidate(context.Background(), "worcester"))
	_, err = repo.LoadSiteDetail(context.Background(), "worcester", "w2")
	require.NoError(t, err)
}

const twoCities = `{
	"cities": [
		{"slug":"worcester","name":"Worcester","bbox":[-71.88,42.21,-71.73,42.34]},
		{"slug":"boston","name":"Boston","bbox":[-71.19,42.23,-70.92,42.40]}
	],
	"sites": {
		"worcester": [{"id":"w1","lat":42.26,"lng":-71.80,"score_overall":88,"score_demand":70,"score_equity":60,"score_traffic":50,"score_grid":40,"daily_kwh_estimate":200}],
		"boston": [{"id":"b1","lat":42.35,"lng":-71.06,"score_overall":72,"score_demand":65,"score_equity":55,"score_traffic":80,"score_grid":35,"daily_kwh_estimate":150}]
	}
}`

func TestPublishOnlySelectedCities(t *testing.T) {
	source, err := siterepo.ParseFixture([]byte(twoCities))
	require.NoError(t, err)
	objects := NewMemoryObjects()
	ctx := context.Background()

	n, err := Publish(ctx, source, objects, "", "boston")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = objects.Get(ctx, SitesObject("worcester"))
	require.ErrorIs(t, err, ErrObjectNotFound)

	cities, err := NewRepository(objects, "", nil).LoadCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 1)
	require.Equal(t, "boston", cities[0].Slug)

	n, err = Publish(ctx, source, objects, "", "atlantis")
	require.NoError(t, err)
	require.Zero(t, n)
	cities, err = NewRepository(objects, "", nil).LoadCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 1)
}

func TestPartialPublishKeepsOtherCities(t *testing.T) {
	source, err := siterepo.ParseFixture([]byte(twoCities))
	require.NoError(t, err)
	objects := NewMemoryObjects()
	ctx := context.Background()

	_, err = Publish(ctx, source, objects, "processed")
	require.NoError(t, err)
	n, err := Publish(ctx, source, objects, "processed", "boston")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	repo := NewRepository(objects, "processed", nil)
	cities, err := repo.LoadCities(ctx)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	require.Equal(t, "worcester", cities[0].Slug)
	require.Equal(t, "boston", cities[1].Slug)

	sites, err := repo.LoadSites(ctx, "worcester")
	require.NoError(t, err)
	require.Len(t, sites, 1)
}

type failingObjects struct{ err error }

func (f failingObjects) Get(context.Context, string) ([]byte, error)       { return nil, f.err }
func (f failingObjects) Put(context.Context, string, []byte, string) error { return f.err }

func TestMissingAndFailingObjects(t *testing.T) {
	repo := NewRepository(NewMemoryObjects(), "", nil)
	_, err := repo.LoadCities(context.Background())
	require.True(t, site.IsNotFound(err))

	repo = NewRepository(failingObjects{err: errors.New("timeout")}, "", nil)
	_, err = repo.LoadSites(context.Background(), "worcester")
	require.True(t, site.IsNetwork(err))

	objects := NewMemoryObjects()
	require.NoError(t, objects.Put(context.Background(), citiesObject, []byte(`{`), contentJSON))
	_, err = NewRepository(objects, "", nil).LoadCities(context.Background())
	require.True(t, site.IsDecode(err))
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "acct.r2.cloudflarestorage.com", sanitizeEndpoint("https://acct.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "", sanitizeEndpoint(""))
}
