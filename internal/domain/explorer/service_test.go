package explorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/chargemap/internal/domain/site"
	apperrors "github.com/yanqian/chargemap/pkg/errors"
)

type stubRepository struct {
	*gatedLoader
	cities    []site.City
	sites     map[string][]site.Site
	citiesErr error
	sitesErr  error
	siteCalls int
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		gatedLoader: newGatedLoader(),
		cities:      []site.City{worcester},
		sites:       map[string][]site.Site{"worcester": sampleSites()},
	}
}

func (s *stubRepository) LoadCities(context.Context) ([]site.City, error) {
	if s.citiesErr != nil {
		return nil, s.citiesErr
	}
	return s.cities, nil
}

func (s *stubRepository) LoadSites(_ context.Context, slug string) ([]site.Site, error) {
	s.siteCalls++
	if s.sitesErr != nil {
		return nil, s.sitesErr
	}
	return s.sites[slug], nil
}

type cachedStubRepository struct {
	*stubRepository
}

func (c cachedStubRepository) LoadSitesCached(ctx context.Context, slug string) ([]site.Site, bool, error) {
	sites, err := c.LoadSites(ctx, slug)
	return sites, true, err
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newTestService(repo site.Repository, cfg Config) (*service, *fakeClock) {
	svc := NewService(cfg, repo, nil).(*service)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	n := 0
	svc.newID = func() string {
		n++
		return "sess-" + string(rune('0'+n))
	}
	return svc, clock
}

func TestOpenCreatesSessionWithDefaults(t *testing.T) {
	svc, _ := newTestService(newStubRepository(), Config{SourceName: "api"})

	res, err := svc.Open(context.Background(), " Worcester ")
	require.NoError(t, err)
	require.Equal(t, "sess-1", res.Session.ID())
	require.Equal(t, "worcester", res.Session.City().Slug)
	require.Equal(t, site.DefaultFilterConfig(), res.Session.Filter())
	require.Equal(t, "api", res.Load.Source)
	require.Equal(t, 4, res.Load.Items)
	require.False(t, res.Load.CacheHit)

	got, err := svc.Session("sess-1")
	require.NoError(t, err)
	require.Same(t, res.Session, got)
}

func TestOpenReportsCacheHits(t *testing.T) {
	svc, _ := newTestService(cachedStubRepository{newStubRepository()}, Config{})
	res, err := svc.Open(context.Background(), "worcester")
	require.NoError(t, err)
	require.True(t, res.Load.CacheHit)
	require.Equal(t, "repository", res.Load.Source)
}

func TestOpenErrors(t *testing.T) {
	svc, _ := newTestService(newStubRepository(), Config{})
	_, err := svc.Open(context.Background(), "")
	require.True(t, site.IsInvalidArgument(err))

	_, err = svc.Open(context.Background(), "springfield")
	require.True(t, site.IsNotFound(err))

	repo := newStubRepository()
	repo.sitesErr = site.NetworkError("sites unavailable", errors.New("boom"))
	svc, _ = newTestService(repo, Config{})
	res, err := svc.Open(context.Background(), "worcester")
	require.True(t, site.IsNetwork(err))
	require.Nil(t, res.Session)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	svc, clock := newTestService(newStubRepository(), Config{SessionTTL: time.Minute})
	res, err := svc.Open(context.Background(), "worcester")
	require.NoError(t, err)

	clock.now = clock.now.Add(30 * time.Second)
	_, err = svc.Session(res.Session.ID())
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = svc.Session(res.Session.ID())
	require.True(t, apperrors.IsCode(err, CodeSessionNotFound))
}

func TestOpenSweepsExpiredSessions(t *testing.T) {
	svc, clock := newTestService(newStubRepository(), Config{SessionTTL: time.Minute, MaxSessions: 1})
	_, err := svc.Open(context.Background(), "worcester")
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), "worcester")
	require.True(t, apperrors.IsCode(err, CodeSessionLimit))

	clock.now = clock.now.Add(5 * time.Minute)
	res, err := svc.Open(context.Background(), "worcester")
	require.NoError(t, err)
	require.Equal(t, "sess-3", res.Session.ID())
}

func TestDiscard(t *testing.T) {
	svc, _ := newTestService(newStubRepository(), Config{})
	res, err := svc.Open(context.Background(), "worcester")
	require.NoError(t, err)

	require.NoError(t, svc.Discard(res.Session.ID()))
	_, err = svc.Session(res.Session.ID())
	require.True(t, apperrors.IsCode(err, CodeSessionNotFound))
	require.True(t, apperrors.IsCode(svc.Discard(res.Session.ID()), CodeSessionNotFound))
}

func TestCityStats(t *testing.T) {
	svc, _ := newTestService(newStubRepository(), Config{TopN: 2})
	stats, err := svc.CityStats(context.Background(), "worcester")
	require.NoError(t, err)
	require.Equal(t, 4, stats.TotalSites)
	require.Len(t, stats.TopSites, 2)
	require.Equal(t, "s1", stats.TopSites[0].ID)
}

func TestCloseShutsSessionsDown(t *testing.T) {
	repo := newStubRepository()
	svc, _ := newTestService(repo, Config{})
	res, err := svc.Open(context.Background(), "worcester")
	require.NoError(t, err)
	_, err = res.Session.Select("s1")
	require.NoError(t, err)
	repo.release("s1", detailFor("s1"))

	svc.Close()
	require.Equal(t, PhaseIdle, res.Session.Detail().State)
	_, err = svc.Session(res.Session.ID())
	require.Error(t, err)
}

type invalidatingStubRepository struct {
	*stubRepository
	invalidated []string
	err         error
}

func (r *invalidatingStubRepository) Invalidate(_ context.Context, slugs ...string) error {
	r.invalidated = append(r.invalidated, slugs...)
	return r.err
}

func TestRefresh(t *testing.T) {
	repo := &invalidatingStubRepository{stubRepository: newStubRepository()}
	svc, _ := newTestService(repo, Config{})

	require.NoError(t, svc.Refresh(context.Background(), " Worcester "))
	require.Equal(t, []string{"worcester"}, repo.invalidated)

	repo.err = errors.New("valkey down")
	require.True(t, site.IsNetwork(svc.Refresh(context.Background(), "worcester")))
	require.True(t, site.IsInvalidArgument(svc.Refresh(context.Background(), "")))

	plain, _ := newTestService(newStubRepository(), Config{})
	require.NoError(t, plain.Refresh(context.Background(), "worcester"))
}
