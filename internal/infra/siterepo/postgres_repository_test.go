package siterepo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
)

var siteCols = []string{
	"id", "city", "lat", "lng", "location_label", "parcel_id",
	"score_overall", "score_demand", "score_equity", "score_traffic", "score_grid",
	"daily_kwh_estimate", "parking_lot", "municipal_parcel",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresLoadCities(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM cities").WillReturnRows(
		pgxmock.NewRows([]string{"slug", "name", "state", "west", "south", "east", "north", "center_lat", "center_lng", "default_zoom"}).
			AddRow("worcester", "Worcester", "MA", -71.88, 42.21, -71.73, 42.34, 42.2626, -71.8023, 13),
	)

	cities, err := NewPostgresRepository(mock).LoadCities(context.Background())
	require.NoError(t, err)
	require.Len(t, cities, 1)
	require.Equal(t, "worcester", cities[0].Slug)
	require.Equal(t, 42.34, cities[0].BoundingBox.North)
	require.Equal(t, 13, cities[0].DefaultZoom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadSites(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sites").WithArgs("worcester").WillReturnRows(
		pgxmock.NewRows(siteCols).
			AddRow("1", "worcester", 42.26, -71.80, "Main St", "P-1", 91.0, 80.0, 70.0, 60.0, 50.0, 300.0, true, false).
			AddRow("2", "worcester", 42.27, -71.81, "", "", 40.0, 30.0, 20.0, 10.0, 5.0, 12.0, false, true),
	)

	sites, err := NewPostgresRepository(mock).LoadSites(context.Background(), "worcester")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	require.Equal(t, "Main St", sites[0].Label())
	require.Equal(t, 91.0, sites[0].Scores.Overall)
	require.True(t, sites[0].ParkingLot)
	require.True(t, sites[1].MunicipalParcel)
	require.Equal(t, "2", sites[1].Label())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadSitesEmptyAndAbove(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("score_overall >= \\$2").WithArgs("worcester", 75.0).WillReturnRows(pgxmock.NewRows(siteCols))

	sites, err := NewPostgresRepository(mock).LoadSitesAbove(context.Background(), "worcester", 75)
	require.NoError(t, err)
	require.NotNil(t, sites)
	require.Empty(t, sites)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadSitesRejectsOutOfRangeScores(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sites").WithArgs("worcester").WillReturnRows(
		pgxmock.NewRows(siteCols).
			AddRow("1", "worcester", 42.26, -71.80, "", "", 120.0, 80.0, 70.0, 60.0, 50.0, 300.0, false, false),
	)
	_, err := NewPostgresRepository(mock).LoadSites(context.Background(), "worcester")
	require.True(t, site.IsDecode(err))
}

func TestPostgresQueryFailureIsNetworkError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sites").WithArgs("worcester").WillReturnError(errors.New("connection reset"))
	_, err := NewPostgresRepository(mock).LoadSites(context.Background(), "worcester")
	require.True(t, site.IsNetwork(err))
}

func TestPostgresLoadSiteDetail(t *testing.T) {
	mock := newMock(t)
	cols := append(append([]string{}, siteCols...), "features", "notes")
	mock.ExpectQuery("FROM sites").WithArgs("worcester", "1").WillReturnRows(
		pgxmock.NewRows(cols).
			AddRow("1", "worcester", 42.26, -71.80, "Main St", "P-1", 91.0, 80.0, 70.0, 60.0, 50.0, 300.0, true, false,
				[]byte(`{"traffic_index":0.9,"parking_lot_flag":1}`), []string{"Near highway"}),
	)
	mock.ExpectQuery("FROM sites").WithArgs("worcester", "404").WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	detail, err := repo.LoadSiteDetail(context.Background(), "worcester", "1")
	require.NoError(t, err)
	require.Equal(t, "1", detail.ID)
	require.Equal(t, 0.9, detail.Features["traffic_index"])
	require.Equal(t, []string{"Near highway"}, detail.Notes)

	_, err = repo.LoadSiteDetail(context.Background(), "worcester", "404")
	require.True(t, site.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
