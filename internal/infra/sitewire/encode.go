package sitewire

import (
	"encoding/json"

	"github.com/yanqian/chargemap/internal/domain/site"
)

type encodedCity struct {
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	State       string     `json:"state,omitempty"`
	BBox        [4]float64 `json:"bbox"`
	Center      [2]float64 `json:"center"`
	DefaultZoom int        `json:"defaultZoom"`
}

type encodedScores struct {
	Overall float64 `json:"overall"`
	Demand  float64 `json:"demand"`
	Equity  float64 `json:"equity"`
	Traffic float64 `json:"traffic"`
	Grid    float64 `json:"grid"`
}

type encodedSite struct {
	ID                  string             `json:"id"`
	City                string             `json:"city"`
	Lat                 float64            `json:"lat"`
	Lng                 float64            `json:"lng"`
	LocationLabel       string             `json:"location_label,omitempty"`
	ParcelID            string             `json:"parcel_id,omitempty"`
	Scores              encodedScores      `json:"scores"`
	DailyKwh            float64            `json:"daily_kwh_estimate"`
	ParkingLotFlag      int                `json:"parking_lot_flag"`
	MunicipalParcelFlag int                `json:"municipal_parcel_flag"`
	Features            map[string]float64 `json:"features,omitempty"`
	Notes               []string           `json:"notes,omitempty"`
}

// EncodeCities renders cities in the array bbox/center form DecodeCities accepts.
func EncodeCities(cities []site.City) ([]byte, error) {
	out := make([]encodedCity, 0, len(cities))
	for _, c := range cities {
		b := c.BoundingBox
		out = append(out, encodedCity{
			Slug:        c.Slug,
			Name:        c.Name,
			State:       c.State,
			BBox:        [4]float64{b.West, b.South, b.East, b.North},
			Center:      [2]float64{c.Center.Lat, c.Center.Lng},
			DefaultZoom: c.DefaultZoom,
		})
	}
	return json.Marshal(out)
}

// EncodeSiteDetails renders detail records with nested scores, readable by
// DecodeSiteDetails and DecodeSites.
func EncodeSiteDetails(details []site.SiteDetail) ([]byte, error) {
	out := make([]encodedSite, 0, len(details))
	for _, d := range details {
		out = append(out, encodedSite{
			ID:            d.ID,
			City:          d.CitySlug,
			Lat:           d.Lat,
			Lng:           d.Lng,
			LocationLabel: d.LocationLabel,
			ParcelID:      d.ParcelID,
			Scores: encodedScores{
				Overall: d.Scores.Overall,
				Demand:  d.Scores.Demand,
				Equity:  d.Scores.Equity,
				Traffic: d.Scores.Traffic,
				Grid:    d.Scores.Grid,
			},
			DailyKwh:            d.DailyKwhEstimate,
			ParkingLotFlag:      flag(d.ParkingLot),
			MunicipalParcelFlag: flag(d.MunicipalParcel),
			Features:            d.Features,
			Notes:               d.Notes,
		})
	}
	return json.Marshal(out)
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
