package sitecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yanqian/chargemap/internal/domain/site"
)

const (
	defaultLoadTimeout = 30 * time.Second

	citiesKey      = "cities"
	sitesKeyPrefix = "sites:"
	detailPrefix   = "detail:"
)

// Repository decorates a site.Repository with a Store. Concurrent misses for the same
// key share a single upstream load, which runs detached from any one caller's context
// and is bounded by loadTimeout.
type Repository struct {
	inner       site.Repository
	store       Store
	ttl         time.Duration
	loadTimeout time.Duration
	logger      *slog.Logger
	group       singleflight.Group
}

var _ site.Repository = (*Repository)(nil)

// NewRepository wraps inner. Entries live for ttl; a non-positive ttl never expires them.
func NewRepository(inner site.Repository, store Store, ttl time.Duration, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		inner:       inner,
		store:       store,
		ttl:         ttl,
		loadTimeout: defaultLoadTimeout,
		logger:      logger.With("component", "sitecache.repository"),
	}
}

// LoadCities implements site.Repository.
func (r *Repository) LoadCities(ctx context.Context) ([]site.City, error) {
	var cities []site.City
	_, err := r.load(ctx, citiesKey, &cities, func(ctx context.Context) (any, error) {
		return r.inner.LoadCities(ctx)
	})
	return cities, err
}

// LoadSites implements site.Repository.
func (r *Repository) LoadSites(ctx context.Context, citySlug string) ([]site.Site, error) {
	sites, _, err := r.LoadSitesCached(ctx, citySlug)
	return sites, err
}

// LoadSitesCached is LoadSites that also reports whether the store answered.
func (r *Repository) LoadSitesCached(ctx context.Context, citySlug string) ([]site.Site, bool, error) {
	var sites []site.Site
	hit, err := r.load(ctx, sitesKeyPrefix+citySlug, &sites, func(ctx context.Context) (any, error) {
		return r.inner.LoadSites(ctx, citySlug)
	})
	if err != nil {
		return nil, false, err
	}
	if sites == nil {
		sites = []site.Site{}
	}
	return sites, hit, nil
}

// LoadSiteDetail implements site.Repository. Detail loads are not collapsed so that
// cancelling one selection never fails another.
func (r *Repository) LoadSiteDetail(ctx context.Context, citySlug, siteID string) (site.SiteDetail, error) {
	key := detailPrefix + citySlug + ":" + siteID
	var detail site.SiteDetail
	if r.read(ctx, key, &detail) {
		return detail, nil
	}
	detail, err := r.inner.LoadSiteDetail(ctx, citySlug, siteID)
	if err != nil {
		return site.SiteDetail{}, err
	}
	r.write(ctx, key, detail)
	return detail, nil
}

// Invalidate drops the city list plus the cached collections and detail records of the
// given cities, or of every city, then forwards to the wrapped repository when it keeps
// copies of its own.
func (r *Repository) Invalidate(ctx context.Context, citySlugs ...string) error {
	if err := r.store.Delete(ctx, citiesKey); err != nil {
		return err
	}
	if len(citySlugs) == 0 {
		for _, prefix := range []string{sitesKeyPrefix, detailPrefix} {
			if err := r.store.DeletePrefix(ctx, prefix); err != nil {
				return err
			}
		}
	}
	for _, slug := range citySlugs {
		if err := r.store.Delete(ctx, sitesKeyPrefix+slug); err != nil {
			return err
		}
		if err := r.store.DeletePrefix(ctx, detailPrefix+slug+":"); err != nil {
			return err
		}
	}
	if inner, ok := r.inner.(site.Invalidator); ok {
		return inner.Invalidate(ctx, citySlugs...)
	}
	return nil
}

func (r *Repository) load(ctx context.Context, key string, out any, fetch func(context.Context) (any, error)) (bool, error) {
	if r.read(ctx, key, out) {
		return true, nil
	}

	ch := r.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		value, err := fetch(loadCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := r.store.Set(loadCtx, key, encoded, r.ttl); err != nil {
			r.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return encoded, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return false, site.NetworkError("load "+key, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return false, res.Err
	}
	if res.Shared {
		r.logger.Debug("shared upstream load", "key", key)
	}
	if err := json.Unmarshal(res.Val.([]byte), out); err != nil {
		return false, site.DecodeError("decode cached "+key, err)
	}
	return false, nil
}

func (r *Repository) read(ctx context.Context, key string, out any) bool {
	payload, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		r.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		_ = r.store.Delete(ctx, key)
		return false
	}
	return true
}

func (r *Repository) write(ctx context.Context, key string, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.store.Set(ctx, key, encoded, r.ttl); err != nil {
		r.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
