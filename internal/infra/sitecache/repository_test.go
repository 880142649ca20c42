package sitecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
)

type countingRepository struct {
	cityCalls   atomic.Int32
	siteCalls   atomic.Int32
	detailCalls atomic.Int32
	gate        chan struct{}
	sitesErr    error
}

func (c *countingRepository) LoadCities(context.Context) ([]site.City, error) {
	c.cityCalls.Add(1)
	return []site.City{{Slug: "worcester", Name: "Worcester"}}, nil
}

func (c *countingRepository) LoadSites(ctx context.Context, slug string) ([]site.Site, error) {
	c.siteCalls.Add(1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, site.NetworkError("load sites", ctx.Err())
		}
	}
	if c.sitesErr != nil {
		return nil, c.sitesErr
	}
	if slug == "empty" {
		return []site.Site{}, nil
	}
	return []site.Site{{ID: "a", CitySlug: slug, Scores: site.Scores{Overall: 70}}}, nil
}

func (c *countingRepository) LoadSiteDetail(_ context.Context, slug, id string) (site.SiteDetail, error) {
	c.detailCalls.Add(1)
	return site.SiteDetail{Site: site.Site{ID: id, CitySlug: slug}, Notes: []string{"n"}}, nil
}

func TestRepositoryCachesCollections(t *testing.T) {
	inner := &countingRepository{}
	repo := NewRepository(inner, NewMemoryStore(), time.Minute, nil)
	ctx := context.Background()

	sites, hit, err := repo.LoadSitesCached(ctx, "worcester")
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, sites, 1)

	sites, hit, err = repo.LoadSitesCached(ctx, "worcester")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 70.0, sites[0].Scores.Overall)
	require.Equal(t, int32(1), inner.siteCalls.Load())

	for i := 0; i < 3; i++ {
		cities, err := repo.LoadCities(ctx)
		require.NoError(t, err)
		require.Equal(t, "worcester", cities[0].Slug)
	}
	require.Equal(t, int32(1), inner.cityCalls.Load())

	for i := 0; i < 2; i++ {
		detail, err := repo.LoadSiteDetail(ctx, "worcester", "a")
		require.NoError(t, err)
		require.Equal(t, []string{"n"}, detail.Notes)
	}
	require.Equal(t, int32(1), inner.detailCalls.Load())
}

func TestRepositoryEmptyCollectionIsNonNil(t *testing.T) {
	repo := NewRepository(&countingRepository{}, NewMemoryStore(), time.Minute, nil)
	for i := 0; i < 2; i++ {
		sites, err := repo.LoadSites(context.Background(), "empty")
		require.NoError(t, err)
		require.NotNil(t, sites)
		require.Empty(t, sites)
	}
}

func TestRepositoryCollapsesConcurrentMisses(t *testing.T) {
	inner := &countingRepository{gate: make(chan struct{})}
	repo := NewRepository(inner, NewMemoryStore(), time.Minute, nil)

	const callers = 8
	var wg sync.WaitGroup
	lens := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sites, err := repo.LoadSites(context.Background(), "worcester")
			lens[i], errs[i] = len(sites), err
		}(i)
	}
	require.Eventually(t, func() bool { return inner.siteCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	require.Equal(t, int32(1), inner.siteCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, 1, lens[i])
	}
}

func TestRepositoryDoesNotCacheErrors(t *testing.T) {
	inner := &countingRepository{sitesErr: site.NetworkError("down", errors.New("dial"))}
	repo := NewRepository(inner, NewMemoryStore(), time.Minute, nil)

	_, err := repo.LoadSites(context.Background(), "worcester")
	require.True(t, site.IsNetwork(err))

	inner.sitesErr = nil
	sites, err := repo.LoadSites(context.Background(), "worcester")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, int32(2), inner.siteCalls.Load())
}

func TestRepositoryInvalidateAndCorruptEntries(t *testing.T) {
	inner := &countingRepository{}
	store := NewMemoryStore()
	repo := NewRepository(inner, store, time.Minute, nil)
	ctx := context.Background()

	_, err := repo.LoadSites(ctx, "worcester")
	require.NoError(t, err)
	require.NoError(t, repo.Invalidate(ctx, "worcester"))
	_, err = repo.LoadSites(ctx, "worcester")
	require.NoError(t, err)
	require.Equal(t, int32(2), inner.siteCalls.Load())

	require.NoError(t, store.Set(ctx, "sites:worcester", []byte("{not json"), 0))
	sites, hit, err := repo.LoadSitesCached(ctx, "worcester")
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, sites, 1)
	require.Equal(t, int32(3), inner.siteCalls.Load())
}

func TestRepositoryCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	inner := &countingRepository{gate: make(chan struct{})}
	repo := NewRepository(inner, NewMemoryStore(), time.Minute, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := repo.LoadSites(leaderCtx, "worcester")
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return inner.siteCalls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		sites []site.Site
		err   error
	}
	follower := make(chan result, 1)
	go func() {
		sites, err := repo.LoadSites(context.Background(), "worcester")
		follower <- result{sites: sites, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-leaderErr
	require.True(t, site.IsNetwork(err))
	require.ErrorIs(t, err, context.Canceled)

	close(inner.gate)
	got := <-follower
	require.NoError(t, got.err)
	require.Len(t, got.sites, 1)
	require.Equal(t, int32(1), inner.siteCalls.Load())

	_, hit, err := repo.LoadSitesCached(context.Background(), "worcester")
	require.NoError(t, err)
	require.True(t, hit)
}

func TestRepositoryInvalidateDropsDetails(t *testing.T) {
	inner := &countingRepository{}
	store := NewMemoryStore()
	repo := NewRepository(inner, store, time.Minute, nil)
	ctx := context.Background()

	_, err := repo.LoadSiteDetail(ctx, "worcester", "a")
	require.NoError(t, err)
	_, err = repo.LoadSiteDetail(ctx, "lowell", "a")
	require.NoError(t, err)

	require.NoError(t, repo.Invalidate(ctx, "worcester"))
	_, err = repo.LoadSiteDetail(ctx, "worcester", "a")
	require.NoError(t, err)
	_, err = repo.LoadSiteDetail(ctx, "lowell", "a")
	require.NoError(t, err)
	require.Equal(t, int32(3), inner.detailCalls.Load())

	_, err = repo.LoadSites(ctx, "lowell")
	require.NoError(t, err)
	require.NoError(t, repo.Invalidate(ctx))
	require.Zero(t, store.Len())
}

type invalidatingRepository struct {
	countingRepository
	invalidated []string
}

func (r *invalidatingRepository) Invalidate(_ context.Context, slugs ...string) error {
	r.invalidated = append(r.invalidated, slugs...)
	return nil
}

func TestRepositoryInvalidateForwardsToInner(t *testing.T) {
	inner := &invalidatingRepository{}
	repo := NewRepository(inner, NewMemoryStore(), time.Minute, nil)

	require.NoError(t, repo.Invalidate(context.Background(), "worcester"))
	require.Equal(t, []string{"worcester"}, inner.invalidated)
}
