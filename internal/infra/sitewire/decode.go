// Package sitewire decodes the site-data formats served by the remote API and stored in
// snapshots and fixtures.
package sitewire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/yanqian/chargemap/internal/domain/site"
)

type wireCity struct {
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	State       string          `json:"state"`
	BBox        json.RawMessage `json:"bbox"`
	BoundingBox json.RawMessage `json:"boundingBox"`
	Center      json.RawMessage `json:"center"`
	DefaultZoom *int            `json:"default_zoom"`
	Zoom        *int            `json:"defaultZoom"`
}

type wireScores struct {
	Overall *float64 `json:"overall"`
	Demand  *float64 `json:"demand"`
	Equity  *float64 `json:"equity"`
	Traffic *float64 `json:"traffic"`
	Grid    *float64 `json:"grid"`
}

type wireSite struct {
	ID              json.RawMessage    `json:"id"`
	City            string             `json:"city"`
	CitySlug        string             `json:"city_slug"`
	Lat             *float64           `json:"lat"`
	Lng             *float64           `json:"lng"`
	LocationLabel   *string            `json:"location_label"`
	ParcelID        *string            `json:"parcel_id"`
	ScoreOverall    *float64           `json:"score_overall"`
	ScoreDemand     *float64           `json:"score_demand"`
	ScoreEquity     *float64           `json:"score_equity"`
	ScoreTraffic    *float64           `json:"score_traffic"`
	ScoreGrid       *float64           `json:"score_grid"`
	Scores          *wireScores        `json:"scores"`
	DailyKwh        *float64           `json:"daily_kwh_estimate"`
	ParkingLot      json.RawMessage    `json:"parking_lot_flag"`
	MunicipalParcel json.RawMessage    `json:"municipal_parcel_flag"`
	Features        map[string]float64 `json:"features"`
	Notes           json.RawMessage    `json:"notes"`
}

// DecodeCities parses a city list.
func DecodeCities(body []byte) ([]site.City, error) {
	var raw []wireCity
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, site.DecodeError("malformed city list", err)
	}
	cities := make([]site.City, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, rc := range raw {
		city, err := rc.toCity()
		if err != nil {
			return nil, site.DecodeError(fmt.Sprintf("city %d: %s", i, err), nil)
		}
		if _, dup := seen[city.Slug]; dup {
			return nil, site.DecodeError(fmt.Sprintf("duplicate city slug %q", city.Slug), nil)
		}
		seen[city.Slug] = struct{}{}
		cities = append(cities, city)
	}
	return cities, nil
}

// DecodeSites parses a site collection given either as a JSON array or as a GeoJSON
// FeatureCollection of points. Records without a city take citySlug.
func DecodeSites(body []byte, citySlug string) ([]site.Site, error) {
	raws, err := decodeSiteRecords(body)
	if err != nil {
		return nil, err
	}
	sites := make([]site.Site, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, rs := range raws {
		s, err := rs.toSite(citySlug)
		if err != nil {
			return nil, site.DecodeError(fmt.Sprintf("site %d: %s", i, err), nil)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, site.DecodeError(fmt.Sprintf("duplicate site id %q", s.ID), nil)
		}
		seen[s.ID] = struct{}{}
		sites = append(sites, s)
	}
	return sites, nil
}

// DecodeSiteDetails parses a collection whose records carry detail fields, as found in
// snapshots and fixtures.
func DecodeSiteDetails(body []byte, citySlug string) ([]site.SiteDetail, error) {
	raws, err := decodeSiteRecords(body)
	if err != nil {
		return nil, err
	}
	details := make([]site.SiteDetail, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, rs := range raws {
		d, err := rs.toDetail(citySlug)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[d.ID]; dup {
			return nil, site.DecodeError(fmt.Sprintf("duplicate site id %q", d.ID), nil)
		}
		seen[d.ID] = struct{}{}
		details = append(details, d)
	}
	return details, nil
}

// DecodeSiteDetail parses a single detail record.
func DecodeSiteDetail(body []byte, citySlug string) (site.SiteDetail, error) {
	var rs wireSite
	if err := json.Unmarshal(body, &rs); err != nil {
		return site.SiteDetail{}, site.DecodeError("malformed site detail", err)
	}
	return rs.toDetail(citySlug)
}

func decodeSiteRecords(body []byte) ([]wireSite, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, site.DecodeError("empty site collection", nil)
	}
	if trimmed[0] == '[' {
		var raws []wireSite
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, site.DecodeError("malformed site list", err)
		}
		return raws, nil
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(trimmed, &fc); err != nil {
		return nil, site.DecodeError("malformed site feature collection", err)
	}
	raws := make([]wireSite, 0, len(fc.Features))
	for i, f := range fc.Features {
		rs, err := featureToWire(f)
		if err != nil {
			return nil, site.DecodeError(fmt.Sprintf("feature %d: %s", i, err), nil)
		}
		raws = append(raws, rs)
	}
	return raws, nil
}

func featureToWire(f *geojson.Feature) (wireSite, error) {
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return wireSite{}, err
	}
	var rs wireSite
	if err := json.Unmarshal(props, &rs); err != nil {
		return wireSite{}, err
	}
	if len(rs.ID) == 0 && f.ID != "" {
		rs.ID, _ = json.Marshal(f.ID)
	}
	if rs.Lat == nil || rs.Lng == nil {
		point, ok := f.Geometry.(*geom.Point)
		if !ok || point == nil || point.Empty() {
			return wireSite{}, fmt.Errorf("geometry must be a point")
		}
		lng, lat := point.X(), point.Y()
		rs.Lat, rs.Lng = &lat, &lng
	}
	return rs, nil
}

func (rc wireCity) toCity() (site.City, error) {
	slug := strings.ToLower(strings.TrimSpace(rc.Slug))
	if slug == "" {
		return site.City{}, fmt.Errorf("missing slug")
	}
	rawBox := rc.BBox
	if len(rawBox) == 0 {
		rawBox = rc.BoundingBox
	}
	box, err := decodeBBox(rawBox)
	if err != nil {
		return site.City{}, fmt.Errorf("%s: %w", slug, err)
	}
	city := site.City{
		Slug:        slug,
		Name:        strings.TrimSpace(rc.Name),
		State:       strings.TrimSpace(rc.State),
		BoundingBox: box,
		Center:      box.Center(),
		DefaultZoom: site.DefaultZoom,
	}
	if city.Name == "" {
		city.Name = slug
	}
	if len(rc.Center) > 0 && string(rc.Center) != "null" {
		center, err := decodeCenter(rc.Center)
		if err != nil {
			return site.City{}, fmt.Errorf("%s: %w", slug, err)
		}
		city.Center = center
	}
	switch {
	case rc.DefaultZoom != nil:
		city.DefaultZoom = *rc.DefaultZoom
	case rc.Zoom != nil:
		city.DefaultZoom = *rc.Zoom
	}
	return city, nil
}

func decodeBBox(raw json.RawMessage) (site.BoundingBox, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return site.BoundingBox{}, fmt.Errorf("missing bbox")
	}
	var box site.BoundingBox
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil {
			return site.BoundingBox{}, fmt.Errorf("bbox: %w", err)
		}
		if len(arr) != 4 {
			return site.BoundingBox{}, fmt.Errorf("bbox needs 4 values, got %d", len(arr))
		}
		box = site.BoundingBox{West: arr[0], South: arr[1], East: arr[2], North: arr[3]}
	} else {
		var obj struct {
			West, South, East, North *float64
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return site.BoundingBox{}, fmt.Errorf("bbox: %w", err)
		}
		if obj.West == nil || obj.South == nil || obj.East == nil || obj.North == nil {
			return site.BoundingBox{}, fmt.Errorf("bbox is missing an edge")
		}
		box = site.BoundingBox{West: *obj.West, South: *obj.South, East: *obj.East, North: *obj.North}
	}
	if box.South > box.North || box.West > box.East {
		return site.BoundingBox{}, fmt.Errorf("bbox is inverted")
	}
	return box, nil
}

func decodeCenter(raw json.RawMessage) (site.LatLng, error) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil {
			return site.LatLng{}, fmt.Errorf("center: %w", err)
		}
		if len(arr) != 2 {
			return site.LatLng{}, fmt.Errorf("center needs 2 values, got %d", len(arr))
		}
		return site.LatLng{Lat: arr[0], Lng: arr[1]}, nil
	}
	var obj struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return site.LatLng{}, fmt.Errorf("center: %w", err)
	}
	if obj.Lat == nil || obj.Lng == nil {
		return site.LatLng{}, fmt.Errorf("center is missing a coordinate")
	}
	return site.LatLng{Lat: *obj.Lat, Lng: *obj.Lng}, nil
}

func (rs wireSite) toSite(citySlug string) (site.Site, error) {
	id, err := decodeID(rs.ID)
	if err != nil {
		return site.Site{}, err
	}
	if rs.Lat == nil || rs.Lng == nil {
		return site.Site{}, fmt.Errorf("%s: missing coordinates", id)
	}
	if !finite(*rs.Lat) || *rs.Lat < -90 || *rs.Lat > 90 || !finite(*rs.Lng) || *rs.Lng < -180 || *rs.Lng > 180 {
		return site.Site{}, fmt.Errorf("%s: coordinates out of range", id)
	}
	scores, err := rs.scores()
	if err != nil {
		return site.Site{}, fmt.Errorf("%s: %w", id, err)
	}
	kwh := 0.0
	if rs.DailyKwh != nil {
		kwh = *rs.DailyKwh
	}
	if !finite(kwh) || kwh < 0 {
		return site.Site{}, fmt.Errorf("%s: daily kWh estimate must be non-negative", id)
	}
	parking, err := rs.flag(rs.ParkingLot, "parking_lot_flag")
	if err != nil {
		return site.Site{}, fmt.Errorf("%s: %w", id, err)
	}
	municipal, err := rs.flag(rs.MunicipalParcel, "municipal_parcel_flag")
	if err != nil {
		return site.Site{}, fmt.Errorf("%s: %w", id, err)
	}

	slug := citySlug
	switch {
	case rs.CitySlug != "":
		slug = rs.CitySlug
	case rs.City != "":
		slug = rs.City
	}
	return site.Site{
		ID:               id,
		CitySlug:         strings.ToLower(slug),
		Lat:              *rs.Lat,
		Lng:              *rs.Lng,
		LocationLabel:    deref(rs.LocationLabel),
		ParcelID:         deref(rs.ParcelID),
		Scores:           scores,
		DailyKwhEstimate: kwh,
		ParkingLot:       parking,
		MunicipalParcel:  municipal,
	}, nil
}

func (rs wireSite) toDetail(citySlug string) (site.SiteDetail, error) {
	s, err := rs.toSite(citySlug)
	if err != nil {
		return site.SiteDetail{}, site.DecodeError("invalid site detail: "+err.Error(), nil)
	}
	features := make(map[string]float64, len(rs.Features))
	for k, v := range rs.Features {
		features[k] = v
	}
	notes, err := decodeNotes(rs.Notes)
	if err != nil {
		return site.SiteDetail{}, site.DecodeError("invalid site notes", err)
	}
	return site.SiteDetail{Site: s, Features: features, Notes: notes}, nil
}

func (rs wireSite) scores() (site.Scores, error) {
	pick := func(flat *float64, nested func(*wireScores) *float64, name string) (float64, error) {
		v := flat
		if v == nil && rs.Scores != nil {
			v = nested(rs.Scores)
		}
		if v == nil {
			return 0, fmt.Errorf("missing %s score", name)
		}
		if !finite(*v) || *v < 0 || *v > 100 {
			return 0, fmt.Errorf("%s score %v outside [0,100]", name, *v)
		}
		return *v, nil
	}
	var (
		out site.Scores
		err error
	)
	if out.Overall, err = pick(rs.ScoreOverall, func(w *wireScores) *float64 { return w.Overall }, "overall"); err != nil {
		return site.Scores{}, err
	}
	if out.Demand, err = pick(rs.ScoreDemand, func(w *wireScores) *float64 { return w.Demand }, "demand"); err != nil {
		return site.Scores{}, err
	}
	if out.Equity, err = pick(rs.ScoreEquity, func(w *wireScores) *float64 { return w.Equity }, "equity"); err != nil {
		return site.Scores{}, err
	}
	if out.Traffic, err = pick(rs.ScoreTraffic, func(w *wireScores) *float64 { return w.Traffic }, "traffic"); err != nil {
		return site.Scores{}, err
	}
	if out.Grid, err = pick(rs.ScoreGrid, func(w *wireScores) *float64 { return w.Grid }, "grid"); err != nil {
		return site.Scores{}, err
	}
	return out, nil
}

// flag reads a facet flag from the record, falling back to the feature map where detail
// payloads keep it.
func (rs wireSite) flag(raw json.RawMessage, name string) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return rs.Features[name] >= 1, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return false, fmt.Errorf("%s must be a boolean or 0/1", name)
	}
	return n >= 1, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("missing id")
	}
	var id string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("id: %w", err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("id must be a string or number")
		}
		id = n.String()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("empty id")
	}
	return id, nil
}

func decodeNotes(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	if raw[0] == '"' {
		var note string
		if err := json.Unmarshal(raw, &note); err != nil {
			return nil, err
		}
		if strings.TrimSpace(note) == "" {
			return []string{}, nil
		}
		return []string{note}, nil
	}
	var notes []string
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []string{}
	}
	return notes, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
