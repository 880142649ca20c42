package siterepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/sitewire"
)

// MemoryRepository serves cities and sites from process memory. It backs tests, the
// offline CLI and deployments without an upstream.
type MemoryRepository struct {
	mu      sync.RWMutex
	cities  []site.City
	sites   map[string][]site.Site
	details map[string]map[string]site.SiteDetail
}

var _ site.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sites:   make(map[string][]site.Site),
		details: make(map[string]map[string]site.SiteDetail),
	}
}

// Put registers a city with its site details, replacing any earlier registration.
func (r *MemoryRepository) Put(city site.City, details []site.SiteDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := false
	for i := range r.cities {
		if r.cities[i].Slug == city.Slug {
			r.cities[i] = city
			replaced = true
		}
	}
	if !replaced {
		r.cities = append(r.cities, city)
	}

	sites := make([]site.Site, 0, len(details))
	byID := make(map[string]site.SiteDetail, len(details))
	for _, d := range details {
		d.CitySlug = city.Slug
		sites = append(sites, d.Site)
		byID[d.ID] = d
	}
	r.sites[city.Slug] = sites
	r.details[city.Slug] = byID
}

// LoadCities implements site.Repository.
func (r *MemoryRepository) LoadCities(context.Context) ([]site.City, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]site.City{}, r.cities...), nil
}

// LoadSites implements site.Repository.
func (r *MemoryRepository) LoadSites(_ context.Context, citySlug string) ([]site.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sites, ok := r.sites[citySlug]
	if !ok {
		return nil, site.NotFoundError(fmt.Sprintf("city %s not found", citySlug))
	}
	return append([]site.Site{}, sites...), nil
}

// LoadSiteDetail implements site.Repository.
func (r *MemoryRepository) LoadSiteDetail(ctx context.Context, citySlug, siteID string) (site.SiteDetail, error) {
	if err := ctx.Err(); err != nil {
		return site.SiteDetail{}, site.NetworkError("load site detail", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	detail, ok := r.details[citySlug][siteID]
	if !ok {
		return site.SiteDetail{}, site.NotFoundError(fmt.Sprintf("site %s not found in %s", siteID, citySlug))
	}
	return detail, nil
}

type fixtureFile struct {
	Cities json.RawMessage            `json:"cities"`
	Sites  map[string]json.RawMessage `json:"sites"`
}

// LoadFixture reads a JSON fixture of the form {"cities": [...], "sites": {"<slug>": [...]}}
// where the site records use any wire format the remote API accepts.
func LoadFixture(path string) (*MemoryRepository, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(body)
}

// ParseFixture is LoadFixture on an in-memory document.
func ParseFixture(body []byte) (*MemoryRepository, error) {
	var doc fixtureFile
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, site.DecodeError("malformed fixture", err)
	}
	cities, err := sitewire.DecodeCities(doc.Cities)
	if err != nil {
		return nil, err
	}
	repo := NewMemoryRepository()
	for _, city := range cities {
		details := []site.SiteDetail{}
		if raw, ok := doc.Sites[city.Slug]; ok {
			details, err = sitewire.DecodeSiteDetails(raw, city.Slug)
			if err != nil {
				return nil, err
			}
		}
		repo.Put(city, details)
	}
	return repo, nil
}
