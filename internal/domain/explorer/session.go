package explorer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/spatial"
)

// Session is one operator's exploration of a single city: the loaded collection, the
// current filter with its derived views, and the selection state machine.
type Session struct {
	id        string
	city      site.City
	sites     []site.Site
	index     *spatial.Index
	topN      int
	selection *Coordinator

	mu       sync.RWMutex
	cfg      site.FilterConfig
	filtered []site.Site
	top      []site.Site
}

// NewSession builds a session and computes its initial derived views.
func NewSession(id string, city site.City, sites []site.Site, cfg site.FilterConfig, topN int, loader DetailLoader, logger *slog.Logger) (*Session, error) {
	if topN < 0 {
		return nil, site.InvalidArgumentError("topN must be non-negative")
	}
	owned := append([]site.Site(nil), sites...)
	s := &Session{
		id:        id,
		city:      city,
		sites:     owned,
		index:     spatial.NewIndex(owned),
		topN:      topN,
		selection: NewCoordinator(loader, city.Slug, logger),
	}
	if _, err := s.SetFilter(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// City returns the city the session explores.
func (s *Session) City() site.City { return s.city }

// Sites returns the raw collection. Callers must not modify it.
func (s *Session) Sites() []site.Site { return s.sites }

// Filter returns the active filter configuration.
func (s *Session) Filter() site.FilterConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetFilter applies cfg and recomputes the filtered and ranked views. An unchanged
// configuration keeps the previously derived slices.
func (s *Session) SetFilter(cfg site.FilterConfig) (SidebarView, error) {
	if cfg.Threshold == "" {
		cfg.Threshold = site.ThresholdOverall
	}
	if err := cfg.Validate(); err != nil {
		return SidebarView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filtered != nil && s.cfg.Equal(cfg) {
		s.cfg = cfg
		return s.sidebarLocked(), nil
	}

	filtered, err := site.Filter(s.sites, cfg)
	if err != nil {
		return SidebarView{}, err
	}
	top, err := site.Rank(filtered, cfg.Metric, s.topN)
	if err != nil {
		return SidebarView{}, err
	}
	s.cfg, s.filtered, s.top = cfg, filtered, top
	return s.sidebarLocked(), nil
}

// Sidebar returns the list surface's view.
func (s *Session) Sidebar() SidebarView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarLocked()
}

func (s *Session) sidebarLocked() SidebarView {
	top := make([]RankedSite, 0, len(s.top))
	for i, st := range s.top {
		score, _ := site.Resolve(st, s.cfg.Metric)
		top = append(top, RankedSite{Rank: i + 1, Score: score, Site: st})
	}
	return SidebarView{
		City:          s.city,
		Metric:        s.cfg.Metric,
		MinScore:      s.cfg.MinScore,
		Threshold:     s.cfg.Threshold,
		Facets:        s.cfg.ActiveFacets(),
		Metrics:       metricOptions(),
		TotalSites:    len(s.sites),
		FilteredCount: len(s.filtered),
		Top:           top,
	}
}

// Map returns the map surface's view, optionally restricted to a viewport.
func (s *Session) Map(viewport *site.BoundingBox) (MapView, error) {
	var visible map[string]struct{}
	if viewport != nil {
		ids, err := s.index.Within(*viewport)
		if err != nil {
			return MapView{}, err
		}
		visible = ids
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	points := make([]MapPoint, 0, len(s.filtered))
	for _, st := range s.filtered {
		if visible != nil {
			if _, ok := visible[st.ID]; !ok {
				continue
			}
		}
		score, err := site.Resolve(st, s.cfg.Metric)
		if err != nil {
			return MapView{}, err
		}
		bucket := site.ColorBucket(score)
		points = append(points, MapPoint{
			ID:        st.ID,
			Label:     st.Label(),
			Lat:       st.Lat,
			Lng:       st.Lng,
			Score:     score,
			Intensity: site.Intensity(score),
			Bucket:    bucket,
			Color:     bucket.Color(),
		})
	}
	return MapView{
		City:      s.city,
		Metric:    s.cfg.Metric,
		Viewport:  viewport,
		Points:    points,
		Legend:    legend(),
		HeatLayer: site.DefaultHeatLayer(),
	}, nil
}

// Stats summarises the whole collection, ignoring the active filter.
func (s *Session) Stats() (site.CityStats, error) {
	return site.ComputeStats(s.city.Slug, s.sites, s.topN)
}

// Select starts loading siteID's detail and returns the Loading view.
func (s *Session) Select(siteID string) (DetailView, error) {
	if _, err := s.selection.Select(siteID); err != nil {
		return DetailView{}, err
	}
	return s.Detail(), nil
}

// SelectNearest selects the indexed site closest to a map click.
func (s *Session) SelectNearest(lat, lng float64) (DetailView, error) {
	id, ok := s.index.Nearest(lat, lng)
	if !ok {
		return DetailView{}, site.NotFoundError("no sites in this city")
	}
	return s.Select(id)
}

// CloseDetail dismisses the detail panel.
func (s *Session) CloseDetail() DetailView {
	s.selection.Close()
	return s.Detail()
}

// Detail returns the detail panel's current view.
func (s *Session) Detail() DetailView {
	return detailView(s.selection.State(), s.selection.LastLoaded())
}

// AwaitDetail waits for an in-flight selection to settle, returning the latest view
// when ctx expires first.
func (s *Session) AwaitDetail(ctx context.Context) DetailView {
	st, _ := s.selection.Settled(ctx)
	return detailView(st, s.selection.LastLoaded())
}

// Shutdown abandons any detail request and waits for it to return.
func (s *Session) Shutdown() {
	s.selection.Shutdown()
}
