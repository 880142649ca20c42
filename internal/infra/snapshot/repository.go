package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/sitewire"
)

const (
	citiesObject = "cities.json"
	contentJSON  = "application/json"
)

// Repository implements site.Repository over snapshot objects: cities.json and one
// sites_<slug>.json per city holding full detail records.
type Repository struct {
	objects ObjectStore
	prefix  string
	logger  *slog.Logger

	mu      sync.Mutex
	details map[string]map[string]site.SiteDetail
}

var _ site.Repository = (*Repository)(nil)

// NewRepository reads snapshots under prefix.
func NewRepository(objects ObjectStore, prefix string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Repository{
		objects: objects,
		prefix:  prefix,
		logger:  logger.With("component", "snapshot.repository"),
		details: make(map[string]map[string]site.SiteDetail),
	}
}

// SitesObject is the object key holding a city's sites.
func SitesObject(citySlug string) string {
	return "sites_" + citySlug + ".json"
}

// LoadCities implements site.Repository.
func (r *Repository) LoadCities(ctx context.Context) ([]site.City, error) {
	body, err := r.get(ctx, citiesObject)
	if err != nil {
		return nil, err
	}
	return sitewire.DecodeCities(body)
}

// LoadSites implements site.Repository.
func (r *Repository) LoadSites(ctx context.Context, citySlug string) ([]site.Site, error) {
	details, err := r.loadDetails(ctx, citySlug)
	if err != nil {
		return nil, err
	}
	sites := make([]site.Site, 0, len(details))
	for _, d := range details {
		sites = append(sites, d.Site)
	}
	return sites, nil
}

// LoadSiteDetail implements site.Repository. The city's snapshot is read once and kept
// until Invalidate.
func (r *Repository) LoadSiteDetail(ctx context.Context, citySlug, siteID string) (site.SiteDetail, error) {
	r.mu.Lock()
	byID, ok := r.details[citySlug]
	r.mu.Unlock()
	if !ok {
		if _, err := r.loadDetails(ctx, citySlug); err != nil {
			return site.SiteDetail{}, err
		}
		r.mu.Lock()
		byID = r.details[citySlug]
		r.mu.Unlock()
	}
	detail, ok := byID[siteID]
	if !ok {
		return site.SiteDetail{}, site.NotFoundError(fmt.Sprintf("site %s not found in %s", siteID, citySlug))
	}
	return detail, nil
}

// Invalidate forgets memoised detail records of the given cities, or of all of them.
func (r *Repository) Invalidate(_ context.Context, citySlugs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(citySlugs) == 0 {
		r.details = make(map[string]map[string]site.SiteDetail)
		return nil
	}
	for _, slug := range citySlugs {
		delete(r.details, slug)
	}
	return nil
}

func (r *Repository) loadDetails(ctx context.Context, citySlug string) ([]site.SiteDetail, error) {
	body, err := r.get(ctx, SitesObject(citySlug))
	if err != nil {
		return nil, err
	}
	details, err := sitewire.DecodeSiteDetails(body, citySlug)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]site.SiteDetail, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}
	r.mu.Lock()
	r.details[citySlug] = byID
	r.mu.Unlock()
	return details, nil
}

func (r *Repository) get(ctx context.Context, name string) ([]byte, error) {
	body, err := r.objects.Get(ctx, r.prefix+name)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, site.NotFoundError("snapshot " + name + " not found")
		}
		return nil, site.NetworkError("read snapshot "+name, err)
	}
	return body, nil
}

// Publish copies the cities and sites of source into snapshot objects. Cities listed in
// only are published; an empty list publishes every city. A partial publish keeps the
// other cities already listed in the snapshot.
func Publish(ctx context.Context, source site.Repository, objects ObjectStore, prefix string, only ...string) (int, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	cities, err := source.LoadCities(ctx)
	if err != nil {
		return 0, err
	}
	if len(only) > 0 {
		cities = selectCities(cities, only)
	}

	written := 0
	for _, city := range cities {
		sites, err := source.LoadSites(ctx, city.Slug)
		if err != nil {
			return written, err
		}
		details := make([]site.SiteDetail, 0, len(sites))
		for _, s := range sites {
			d, err := source.LoadSiteDetail(ctx, city.Slug, s.ID)
			if err != nil {
				return written, fmt.Errorf("load detail %s/%s: %w", city.Slug, s.ID, err)
			}
			details = append(details, d)
		}
		body, err := sitewire.EncodeSiteDetails(details)
		if err != nil {
			return written, err
		}
		if err := objects.Put(ctx, prefix+SitesObject(city.Slug), body, contentJSON); err != nil {
			return written, err
		}
		written++
	}

	listed := cities
	if len(only) > 0 {
		existing, err := publishedCities(ctx, objects, prefix)
		if err != nil {
			return written, err
		}
		listed = mergeCities(existing, cities)
	}
	body, err := sitewire.EncodeCities(listed)
	if err != nil {
		return written, err
	}
	if err := objects.Put(ctx, prefix+citiesObject, body, contentJSON); err != nil {
		return written, err
	}
	return written, nil
}

func selectCities(cities []site.City, only []string) []site.City {
	wanted := make(map[string]struct{}, len(only))
	for _, slug := range only {
		wanted[slug] = struct{}{}
	}
	selected := make([]site.City, 0, len(only))
	for _, c := range cities {
		if _, ok := wanted[c.Slug]; ok {
			selected = append(selected, c)
		}
	}
	return selected
}

// publishedCities reads the current city list; a missing list is empty.
func publishedCities(ctx context.Context, objects ObjectStore, prefix string) ([]site.City, error) {
	body, err := objects.Get(ctx, prefix+citiesObject)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, site.NetworkError("read snapshot "+citiesObject, err)
	}
	return sitewire.DecodeCities(body)
}

// mergeCities replaces existing entries in place and appends new ones.
func mergeCities(existing, published []site.City) []site.City {
	merged := make([]site.City, 0, len(existing)+len(published))
	index := make(map[string]int, len(existing))
	for _, c := range existing {
		index[c.Slug] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range published {
		if i, ok := index[c.Slug]; ok {
			merged[i] = c
			continue
		}
		index[c.Slug] = len(merged)
		merged = append(merged, c)
	}
	return merged
}
