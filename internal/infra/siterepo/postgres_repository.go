package siterepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/yanqian/chargemap/internal/domain/site"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements site.Repository over the scored-sites tables.
type PostgresRepository struct {
	db Querier
}

var _ site.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	citiesQuery = `
		SELECT slug, name, COALESCE(state, ''), west, south, east, north,
		       COALESCE(center_lat, (south + north) / 2), COALESCE(center_lng, (west + east) / 2),
		       COALESCE(default_zoom, 13)
		FROM cities
		ORDER BY slug
	`
	siteColumns = `
		id::text, city, lat, lng, COALESCE(location_label, ''), COALESCE(parcel_id, ''),
		score_overall, score_demand, score_equity, score_traffic, score_grid,
		daily_kwh_estimate, COALESCE(parking_lot_flag, 0) <> 0, COALESCE(municipal_parcel_flag, 0) <> 0
	`
	sitesQuery = `SELECT ` + siteColumns + `
		FROM sites
		WHERE city = $1
		ORDER BY score_overall DESC, id
	`
	sitesAboveQuery = `SELECT ` + siteColumns + `
		FROM sites
		WHERE city = $1 AND score_overall >= $2
		ORDER BY score_overall DESC, id
	`
	detailQuery = `SELECT ` + siteColumns + `,
		       COALESCE(features, '{}'::jsonb), COALESCE(notes, '{}'::text[])
		FROM sites
		WHERE city = $1 AND id::text = $2
		LIMIT 1
	`
)

// LoadCities implements site.Repository.
func (r *PostgresRepository) LoadCities(ctx context.Context) ([]site.City, error) {
	rows, err := r.db.Query(ctx, citiesQuery)
	if err != nil {
		return nil, site.NetworkError("query cities", err)
	}
	defer rows.Close()

	cities := make([]site.City, 0)
	for rows.Next() {
		var c site.City
		if err := rows.Scan(
			&c.Slug, &c.Name, &c.State,
			&c.BoundingBox.West, &c.BoundingBox.South, &c.BoundingBox.East, &c.BoundingBox.North,
			&c.Center.Lat, &c.Center.Lng, &c.DefaultZoom,
		); err != nil {
			return nil, site.DecodeError("scan city", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, site.NetworkError("iterate cities", err)
	}
	return cities, nil
}

// LoadSites implements site.Repository.
func (r *PostgresRepository) LoadSites(ctx context.Context, citySlug string) ([]site.Site, error) {
	return r.querySites(ctx, sitesQuery, citySlug)
}

// LoadSitesAbove returns the sites whose overall score reaches minScore.
func (r *PostgresRepository) LoadSitesAbove(ctx context.Context, citySlug string, minScore float64) ([]site.Site, error) {
	return r.querySites(ctx, sitesAboveQuery, citySlug, minScore)
}

// LoadSiteDetail implements site.Repository.
func (r *PostgresRepository) LoadSiteDetail(ctx context.Context, citySlug, siteID string) (site.SiteDetail, error) {
	var (
		detail   site.SiteDetail
		features []byte
		notes    []string
	)
	dest := append(siteDest(&detail.Site), &features, &notes)
	if err := r.db.QueryRow(ctx, detailQuery, citySlug, siteID).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return site.SiteDetail{}, site.NotFoundError(fmt.Sprintf("site %s not found in %s", siteID, citySlug))
		}
		return site.SiteDetail{}, site.NetworkError("query site detail", err)
	}
	if err := validate(detail.Site); err != nil {
		return site.SiteDetail{}, err
	}
	detail.Features = map[string]float64{}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &detail.Features); err != nil {
			return site.SiteDetail{}, site.DecodeError("decode site features", err)
		}
	}
	if notes == nil {
		notes = []string{}
	}
	detail.Notes = notes
	return detail, nil
}

func (r *PostgresRepository) querySites(ctx context.Context, query string, args ...any) ([]site.Site, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, site.NetworkError("query sites", err)
	}
	defer rows.Close()

	sites := make([]site.Site, 0)
	for rows.Next() {
		var s site.Site
		if err := rows.Scan(siteDest(&s)...); err != nil {
			return nil, site.DecodeError("scan site", err)
		}
		if err := validate(s); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, site.NetworkError("iterate sites", err)
	}
	return sites, nil
}

func siteDest(s *site.Site) []any {
	return []any{
		&s.ID, &s.CitySlug, &s.Lat, &s.Lng, &s.LocationLabel, &s.ParcelID,
		&s.Scores.Overall, &s.Scores.Demand, &s.Scores.Equity, &s.Scores.Traffic, &s.Scores.Grid,
		&s.DailyKwhEstimate, &s.ParkingLot, &s.MunicipalParcel,
	}
}

func validate(s site.Site) error {
	for _, m := range site.Metrics {
		v, _ := site.Resolve(s, m)
		if math.IsNaN(v) || v < 0 || v > 100 {
			return site.DecodeError(fmt.Sprintf("site %s has %s score %v outside [0,100]", s.ID, m, v), nil)
		}
	}
	if s.DailyKwhEstimate < 0 {
		return site.DecodeError(fmt.Sprintf("site %s has negative daily kWh estimate", s.ID), nil)
	}
	return nil
}
