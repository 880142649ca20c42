package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/chargemap/internal/domain/explorer"
	"github.com/yanqian/chargemap/internal/domain/site"
	apperrors "github.com/yanqian/chargemap/pkg/errors"
	"github.com/yanqian/chargemap/pkg/metrics"
	"github.com/yanqian/chargemap/pkg/util"
)

const defaultDetailWaitMax = 30 * time.Second

// Handler wires the HTTP transport to the explorer service.
type Handler struct {
	explorerSvc   explorer.Service
	detailWaitMax time.Duration
	logger        *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(explorerSvc explorer.Service, detailWaitMax time.Duration, logger *slog.Logger) *Handler {
	if detailWaitMax <= 0 {
		detailWaitMax = defaultDetailWaitMax
	}
	return &Handler{
		explorerSvc:   explorerSvc,
		detailWaitMax: detailWaitMax,
		logger:        logger.With("component", "http.handler"),
	}
}

type openSessionRequest struct {
	City string `json:"city"`
}

type openSessionResponse struct {
	SessionID string               `json:"sessionId"`
	Sidebar   explorer.SidebarView `json:"sidebar"`
	Load      metrics.LoadStats    `json:"load"`
}

type filterRequest struct {
	Metric          string   `json:"metric"`
	MinScore        *float64 `json:"minScore"`
	Facets          []string `json:"facets"`
	ThresholdPolicy string   `json:"thresholdPolicy"`
}

type selectRequest struct {
	SiteID string   `json:"siteId"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Cities lists the supported cities.
func (h *Handler) Cities(c *gin.Context) {
	cities, err := h.explorerSvc.Cities(c.Request.Context())
	if err != nil {
		abortWithError(c, toHTTPError(err, "cities_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

// CityStats returns the roll-up for one city.
func (h *Handler) CityStats(c *gin.Context) {
	stats, err := h.explorerSvc.CityStats(c.Request.Context(), c.Param("slug"))
	if err != nil {
		abortWithError(c, toHTTPError(err, "stats_failed"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RefreshCity drops cached copies of a city's data.
func (h *Handler) RefreshCity(c *gin.Context) {
	if err := h.explorerSvc.Refresh(c.Request.Context(), c.Param("slug")); err != nil {
		abortWithError(c, toHTTPError(err, "refresh_failed"))
		return
	}
	c.Status(http.StatusNoContent)
}

// OpenSession loads a city and starts an exploration session.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", apperrors.MessageOf(err), err))
		return
	}

	result, err := h.explorerSvc.Open(c.Request.Context(), req.City)
	if err != nil {
		abortWithError(c, toHTTPError(err, "open_failed"))
		return
	}

	c.JSON(http.StatusCreated, openSessionResponse{
		SessionID: result.Session.ID(),
		Sidebar:   result.Session.Sidebar(),
		Load:      result.Load,
	})
}

// Sidebar returns the session's filter controls and ranked list.
func (h *Handler) Sidebar(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Sidebar())
}

// Map returns marker and heat data, optionally limited to a viewport.
func (h *Handler) Map(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	view, ok := h.mapView(c, session)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

// MapGeoJSON returns the map view as a GeoJSON FeatureCollection.
func (h *Handler) MapGeoJSON(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	view, ok := h.mapView(c, session)
	if !ok {
		return
	}
	payload, err := encodeMapGeoJSON(view)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "encode_failed", "failed to encode map", err))
		return
	}
	c.Data(http.StatusOK, "application/geo+json", payload)
}

// Stats returns the roll-up of the session's city.
func (h *Handler) Stats(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	stats, err := session.Stats()
	if err != nil {
		abortWithError(c, toHTTPError(err, "stats_failed"))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SetFilter replaces the session's filter. Omitted fields keep their current value.
func (h *Handler) SetFilter(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", apperrors.MessageOf(err), err))
		return
	}

	cfg, err := req.apply(session.Filter())
	if err != nil {
		abortWithError(c, toHTTPError(err, "filter_failed"))
		return
	}
	view, err := session.SetFilter(cfg)
	if err != nil {
		abortWithError(c, toHTTPError(err, "filter_failed"))
		return
	}
	c.JSON(http.StatusOK, view)
}

// Select starts loading a site's detail, by id or by nearest map position.
func (h *Handler) Select(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", apperrors.MessageOf(err), err))
		return
	}

	var (
		view explorer.DetailView
		err  error
	)
	switch {
	case strings.TrimSpace(req.SiteID) != "":
		view, err = session.Select(strings.TrimSpace(req.SiteID))
	case req.Lat != nil && req.Lng != nil:
		view, err = session.SelectNearest(*req.Lat, *req.Lng)
	default:
		err = site.InvalidArgumentError("siteId or lat/lng is required")
	}
	if err != nil {
		abortWithError(c, toHTTPError(err, "select_failed"))
		return
	}
	c.JSON(http.StatusAccepted, view)
}

// CloseDetail dismisses the detail panel.
func (h *Handler) CloseDetail(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.CloseDetail())
}

// Detail returns the detail panel. With ?wait=<duration> it blocks until the current
// selection settles or the wait elapses.
func (h *Handler) Detail(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	raw := c.Query("wait")
	if raw == "" {
		c.JSON(http.StatusOK, session.Detail())
		return
	}
	wait := util.ParseDurationOr(raw, -1)
	if wait < 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "wait must be a duration such as 2s", nil))
		return
	}
	wait = util.ClampDuration(wait, h.detailWaitMax)

	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()
	c.JSON(http.StatusOK, session.AwaitDetail(ctx))
}

// DeleteSession discards a session and its in-flight work.
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.explorerSvc.Discard(c.Param("id")); err != nil {
		abortWithError(c, toHTTPError(err, "delete_failed"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) (*explorer.Session, bool) {
	session, err := h.explorerSvc.Session(c.Param("id"))
	if err != nil {
		abortWithError(c, toHTTPError(err, "session_failed"))
		return nil, false
	}
	return session, true
}

func (h *Handler) mapView(c *gin.Context, session *explorer.Session) (explorer.MapView, bool) {
	viewport, err := parseViewport(c)
	if err != nil {
		abortWithError(c, toHTTPError(err, "map_failed"))
		return explorer.MapView{}, false
	}
	view, err := session.Map(viewport)
	if err != nil {
		abortWithError(c, toHTTPError(err, "map_failed"))
		return explorer.MapView{}, false
	}
	return view, true
}

func (r filterRequest) apply(current site.FilterConfig) (site.FilterConfig, error) {
	next := current
	if r.Metric != "" {
		metric, err := site.ParseMetric(r.Metric)
		if err != nil {
			return site.FilterConfig{}, err
		}
		next.Metric = metric
	}
	if r.MinScore != nil {
		next.MinScore = *r.MinScore
	}
	if r.Facets != nil {
		facets := make(map[site.Facet]bool, len(r.Facets))
		for _, raw := range r.Facets {
			facets[site.Facet(strings.TrimSpace(raw))] = true
		}
		next.Facets = facets
	}
	if r.ThresholdPolicy != "" {
		next.Threshold = site.ThresholdPolicy(strings.ToLower(strings.TrimSpace(r.ThresholdPolicy)))
	}
	return next, nil
}

// parseViewport reads ?west&south&east&north. All four or none must be present.
func parseViewport(c *gin.Context) (*site.BoundingBox, error) {
	keys := [4]string{"west", "south", "east", "north"}
	var values [4]float64
	present := 0
	for i, key := range keys {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, site.InvalidArgumentError("viewport " + key + " must be a number")
		}
		values[i] = v
		present++
	}
	switch present {
	case 0:
		return nil, nil
	case len(keys):
	default:
		return nil, site.InvalidArgumentError("viewport needs west, south, east and north")
	}
	box := site.BoundingBox{West: values[0], South: values[1], East: values[2], North: values[3]}
	if box.West > box.East || box.South > box.North {
		return nil, site.InvalidArgumentError("viewport is inverted")
	}
	return &box, nil
}
