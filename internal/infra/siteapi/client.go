// Package siteapi reads cities and candidate sites from the remote site-data API.
package siteapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/sitewire"
)

const (
	defaultBaseURL = "http://localhost:8000/api"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 32 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client implements site.Repository over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var _ site.Repository = (*Client)(nil)

// NewClient builds an API client. A non-positive RequestsPerSecond disables pacing.
func NewClient(opts Options, logger *slog.Logger) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.With("component", "siteapi.client"),
	}
}

// LoadCities fetches the supported cities.
func (c *Client) LoadCities(ctx context.Context) ([]site.City, error) {
	body, err := c.get(ctx, "/cities", nil)
	if err != nil {
		return nil, err
	}
	return sitewire.DecodeCities(body)
}

// LoadSites fetches every candidate site of a city.
func (c *Client) LoadSites(ctx context.Context, citySlug string) ([]site.Site, error) {
	return c.LoadSitesAbove(ctx, citySlug, nil)
}

// LoadSitesAbove fetches a city's sites, letting the server drop those whose overall
// score is below minScore when it is set.
func (c *Client) LoadSitesAbove(ctx context.Context, citySlug string, minScore *float64) ([]site.Site, error) {
	if strings.TrimSpace(citySlug) == "" {
		return nil, site.InvalidArgumentError("city slug cannot be empty")
	}
	query := url.Values{"city": []string{citySlug}}
	if minScore != nil {
		query.Set("min_score", strconv.FormatFloat(*minScore, 'f', -1, 64))
	}
	body, err := c.get(ctx, "/sites", query)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, site.NotFoundError(fmt.Sprintf("city %s not found", citySlug))
		}
		return nil, err
	}
	return sitewire.DecodeSites(body, citySlug)
}

// LoadSiteDetail fetches one site's detail record.
func (c *Client) LoadSiteDetail(ctx context.Context, citySlug, siteID string) (site.SiteDetail, error) {
	if strings.TrimSpace(siteID) == "" {
		return site.SiteDetail{}, site.InvalidArgumentError("site id cannot be empty")
	}
	body, err := c.get(ctx, "/site/"+url.PathEscape(siteID), url.Values{"city": []string{citySlug}})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return site.SiteDetail{}, site.NotFoundError(fmt.Sprintf("site %s not found in %s", siteID, citySlug))
		}
		return site.SiteDetail{}, err
	}
	return sitewire.DecodeSiteDetail(body, citySlug)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, site.NetworkError("rate limiter wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, site.NetworkError("build site api request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, site.NetworkError("site api request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, site.NetworkError("site api error", &statusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, site.NetworkError("read site api response", err)
	}
	c.logger.Debug("site api request", "path", path, "status", resp.StatusCode, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// statusError is the cause behind every non-2xx response.
type statusError struct {
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Path, e.Status, e.Body)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == status
}
