package explorer

import (
	apperrors "github.com/yanqian/chargemap/pkg/errors"

	"github.com/yanqian/chargemap/internal/domain/site"
)

// MetricOption is one entry of the score-layer picker.
type MetricOption struct {
	Key   site.Metric `json:"key"`
	Label string      `json:"label"`
}

// RankedSite is a row of the top-N list.
type RankedSite struct {
	Rank  int       `json:"rank"`
	Score float64   `json:"score"`
	Site  site.Site `json:"site"`
}

// SidebarView feeds the filter controls and the ranked list.
type SidebarView struct {
	City          site.City            `json:"city"`
	Metric        site.Metric          `json:"metric"`
	MinScore      float64              `json:"minScore"`
	Threshold     site.ThresholdPolicy `json:"thresholdPolicy"`
	Facets        []site.Facet         `json:"facets"`
	Metrics       []MetricOption       `json:"metrics"`
	TotalSites    int                  `json:"totalSites"`
	FilteredCount int                  `json:"filteredCount"`
	Top           []RankedSite         `json:"top"`
}

// MapPoint is a marker or heat point for one filtered site.
type MapPoint struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	Lat       float64     `json:"lat"`
	Lng       float64     `json:"lng"`
	Score     float64     `json:"score"`
	Intensity float64     `json:"intensity"`
	Bucket    site.Bucket `json:"bucket"`
	Color     string      `json:"color"`
}

// LegendEntry describes one colour bucket.
type LegendEntry struct {
	Bucket   site.Bucket `json:"bucket"`
	MinScore float64     `json:"minScore"`
	Color    string      `json:"color"`
}

// MapView feeds the map surface.
type MapView struct {
	City      site.City             `json:"city"`
	Metric    site.Metric           `json:"metric"`
	Viewport  *site.BoundingBox     `json:"viewport,omitempty"`
	Points    []MapPoint            `json:"points"`
	Legend    []LegendEntry         `json:"legend"`
	HeatLayer site.HeatLayerOptions `json:"heatLayer"`
}

// ViewError is the user-facing shape of a failed detail load.
type ViewError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DetailView feeds the detail panel. Previous carries the last loaded detail while a
// failed load is displayed.
type DetailView struct {
	State    Phase            `json:"state"`
	SiteID   string           `json:"siteId,omitempty"`
	Detail   *site.SiteDetail `json:"detail,omitempty"`
	Previous *site.SiteDetail `json:"previous,omitempty"`
	Error    *ViewError       `json:"error,omitempty"`
}

func metricOptions() []MetricOption {
	out := make([]MetricOption, 0, len(site.Metrics))
	for _, m := range site.Metrics {
		out = append(out, MetricOption{Key: m, Label: m.Label()})
	}
	return out
}

func legend() []LegendEntry {
	return []LegendEntry{
		{Bucket: site.Bucket5, MinScore: 80, Color: site.Bucket5.Color()},
		{Bucket: site.Bucket4, MinScore: 60, Color: site.Bucket4.Color()},
		{Bucket: site.Bucket3, MinScore: 40, Color: site.Bucket3.Color()},
		{Bucket: site.Bucket2, MinScore: 20, Color: site.Bucket2.Color()},
		{Bucket: site.Bucket1, MinScore: 0, Color: site.Bucket1.Color()},
	}
}

func detailView(st State, previous *site.SiteDetail) DetailView {
	view := DetailView{State: st.Phase, SiteID: st.SiteID}
	switch st.Phase {
	case PhaseLoaded:
		view.Detail = st.Detail
	case PhaseFailed:
		view.Previous = previous
		view.Error = toViewError(st.Err)
	}
	return view
}

func toViewError(err error) *ViewError {
	if err == nil {
		return nil
	}
	code := apperrors.CodeOf(err)
	if code == "" {
		code = "detail_failed"
	}
	return &ViewError{Code: code, Message: err.Error()}
}
