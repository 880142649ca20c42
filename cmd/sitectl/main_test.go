package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/siterepo"
	"github.com/yanqian/chargemap/internal/infra/snapshot"
)

var testCity = site.City{
	Slug:        "worcester",
	Name:        "Worcester",
	BoundingBox: site.BoundingBox{West: -71.88, South: 42.21, East: -71.73, North: 42.34},
	Center:      site.LatLng{Lat: 42.2626, Lng: -71.8023},
	DefaultZoom: 13,
}

func newTestEnv(t *testing.T) (*env, *bytes.Buffer, *snapshot.MemoryObjects) {
	t.Helper()
	repo := siterepo.NewMemoryRepository()
	repo.Put(testCity, []site.SiteDetail{
		{Site: site.Site{ID: "s1", Lat: 42.26, Lng: -71.80, LocationLabel: "Main St lot", Scores: site.Scores{Overall: 90, Demand: 40}, ParkingLot: true, DailyKwhEstimate: 120}, Notes: []string{"near transit"}},
		{Site: site.Site{ID: "s2", Lat: 42.30, Lng: -71.76, Scores: site.Scores{Overall: 75, Demand: 95}, MunicipalParcel: true, DailyKwhEstimate: 80}, Notes: []string{}},
		{Site: site.Site{ID: "s3", Lat: 42.22, Lng: -71.87, Scores: site.Scores{Overall: 40, Demand: 99}, ParkingLot: true, DailyKwhEstimate: 60}, Notes: []string{}},
	})
	objects := snapshot.NewMemoryObjects()
	out := &bytes.Buffer{}
	return &env{
		out:     out,
		repo:    func() (site.Repository, error) { return repo, nil },
		objects: func() (snapshot.ObjectStore, string, error) { return objects, "processed", nil },
	}, out, objects
}

func run(t *testing.T, e *env, args ...string) error {
	t.Helper()
	cmd := newRootCmd(e)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestCitiesCommand(t *testing.T) {
	e, out, _ := newTestEnv(t)

	require.NoError(t, run(t, e, "cities"))
	require.Contains(t, out.String(), "SLUG")
	require.Contains(t, out.String(), "worcester")
	require.Contains(t, out.String(), "42.2626,-71.8023")

	out.Reset()
	require.NoError(t, run(t, e, "cities", "--output", "json"))
	var cities []site.City
	require.NoError(t, json.Unmarshal(out.Bytes(), &cities))
	require.Equal(t, []site.City{testCity}, cities)
}

func TestTopCommand(t *testing.T) {
	e, out, _ := newTestEnv(t)

	require.NoError(t, run(t, e, "top", "--city", "worcester"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, "2 of 3 sites match", lines[0])
	require.Len(t, lines, 4)
	require.Contains(t, lines[2], "s1")
	require.Contains(t, lines[2], "Main St lot")

	out.Reset()
	require.NoError(t, run(t, e, "top", "--city", "worcester", "--metric", "demand", "--min-score", "0", "--facet", "parkingOnly", "--output", "json"))
	var top []site.Site
	require.NoError(t, json.Unmarshal(out.Bytes(), &top))
	require.Len(t, top, 2)
	require.Equal(t, "s3", top[0].ID)
	require.Equal(t, "s1", top[1].ID)
}

func TestTopCommandRejectsBadInput(t *testing.T) {
	e, _, _ := newTestEnv(t)

	err := run(t, e, "top", "--city", "worcester", "--metric", "popularity")
	require.True(t, site.IsInvalidMetric(err))

	err = run(t, e, "top", "--city", "worcester", "--min-score", "101")
	require.True(t, site.IsInvalidArgument(err))

	err = run(t, e, "top", "--city", "boston")
	require.True(t, site.IsNotFound(err))

	require.Error(t, run(t, e, "top"))
}

func TestSiteCommand(t *testing.T) {
	e, out, _ := newTestEnv(t)

	require.NoError(t, run(t, e, "site", "--city", "worcester", "s1"))
	var detail site.SiteDetail
	require.NoError(t, json.Unmarshal(out.Bytes(), &detail))
	require.Equal(t, "s1", detail.ID)
	require.Equal(t, []string{"near transit"}, detail.Notes)

	err := run(t, e, "site", "--city", "worcester", "missing")
	require.True(t, site.IsNotFound(err))
}

func TestStatsCommand(t *testing.T) {
	e, out, _ := newTestEnv(t)

	require.NoError(t, run(t, e, "stats", "--city", "worcester", "--limit", "1"))
	var stats site.CityStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	require.Equal(t, 3, stats.TotalSites)
	require.Equal(t, 40.0, stats.Score.Min)
	require.Equal(t, 260.0, stats.Demand.TotalDailyKwh)
	require.Len(t, stats.TopSites, 1)
	require.Equal(t, "s1", stats.TopSites[0].ID)
}

func TestSnapshotCommand(t *testing.T) {
	e, out, objects := newTestEnv(t)

	require.NoError(t, run(t, e, "snapshot"))
	require.Equal(t, "published 1 cities\n", out.String())

	repo := snapshot.NewRepository(objects, "processed", nil)
	sites, err := repo.LoadSites(context.Background(), "worcester")
	require.NoError(t, err)
	require.Len(t, sites, 3)
}
