package site

// BoundingBox is a WGS84 envelope in degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() LatLng {
	return LatLng{
		Lat: (b.South + b.North) / 2,
		Lng: (b.West + b.East) / 2,
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// IsZero reports whether no bounds were supplied.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// LatLng is a single coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultZoom is used when the upstream does not advertise a zoom level for a city.
const DefaultZoom = 13

// City is the immutable metadata for a supported city.
type City struct {
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	State       string      `json:"state,omitempty"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Center      LatLng      `json:"center"`
	DefaultZoom int         `json:"defaultZoom"`
}

// Scores holds the 0-100 opportunity sub-scores of a site.
type Scores struct {
	Overall float64 `json:"overall"`
	Demand  float64 `json:"demand"`
	Equity  float64 `json:"equity"`
	Traffic float64 `json:"traffic"`
	Grid    float64 `json:"grid"`
}

// Site is the summary record of a candidate location.
type Site struct {
	ID               string  `json:"id"`
	CitySlug         string  `json:"citySlug"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	LocationLabel    string  `json:"locationLabel,omitempty"`
	ParcelID         string  `json:"parcelId,omitempty"`
	Scores           Scores  `json:"scores"`
	DailyKwhEstimate float64 `json:"dailyKwhEstimate"`
	ParkingLot       bool    `json:"parkingLot"`
	MunicipalParcel  bool    `json:"municipalParcel"`
}

// Label returns the human readable name of the site, falling back to its id.
func (s Site) Label() string {
	if s.LocationLabel != "" {
		return s.LocationLabel
	}
	return s.ID
}

// SiteDetail expands a Site with its feature indices and notes.
type SiteDetail struct {
	Site
	Features map[string]float64 `json:"features"`
	Notes    []string           `json:"notes"`
}
