package site

import "context"

// Repository is the read contract of every site-data source.
type Repository interface {
	LoadCities(ctx context.Context) ([]City, error)
	// LoadSites never returns a nil slice on success.
	LoadSites(ctx context.Context, citySlug string) ([]Site, error)
	LoadSiteDetail(ctx context.Context, citySlug, siteID string) (SiteDetail, error)
}

// FindCity looks a slug up in a loaded city list.
func FindCity(cities []City, slug string) (City, bool) {
	for _, c := range cities {
		if c.Slug == slug {
			return c, true
		}
	}
	return City{}, false
}

// Invalidator is implemented by repositories that keep copies of upstream data.
// No slugs means every city.
type Invalidator interface {
	Invalidate(ctx context.Context, citySlugs ...string) error
}
