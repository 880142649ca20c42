package explorer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/chargemap/internal/domain/site"
	apperrors "github.com/yanqian/chargemap/pkg/errors"
	"github.com/yanqian/chargemap/pkg/metrics"
	"github.com/yanqian/chargemap/pkg/util"
)

// Error codes owned by the session registry.
const (
	CodeSessionNotFound = "session_not_found"
	CodeSessionLimit    = "session_limit"
)

// Service exposes city browsing and exploration sessions.
type Service interface {
	Cities(ctx context.Context) ([]site.City, error)
	CityStats(ctx context.Context, citySlug string) (site.CityStats, error)
	Refresh(ctx context.Context, citySlug string) error
	Open(ctx context.Context, citySlug string) (OpenResult, error)
	Session(id string) (*Session, error)
	Discard(id string) error
	Close()
}

// OpenResult is what a freshly opened session reports back.
type OpenResult struct {
	Session *Session
	Load    metrics.LoadStats
}

// CachedSiteLoader is implemented by repositories that can tell whether a collection came
// from cache.
type CachedSiteLoader interface {
	LoadSitesCached(ctx context.Context, citySlug string) ([]site.Site, bool, error)
}

type sessionEntry struct {
	session  *Session
	lastSeen time.Time
}

type service struct {
	cfg    Config
	repo   site.Repository
	logger *slog.Logger
	now    util.Clock
	newID  func() string

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewService wires up the exploration domain.
func NewService(cfg Config, repo site.Repository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		cfg:      cfg.withDefaults(),
		repo:     repo,
		logger:   logger.With("component", "explorer.service"),
		now:      util.NowUTC,
		newID:    func() string { return uuid.NewString() },
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *service) Cities(ctx context.Context) ([]site.City, error) {
	return s.repo.LoadCities(ctx)
}

func (s *service) CityStats(ctx context.Context, citySlug string) (site.CityStats, error) {
	slug, err := normalizeSlug(citySlug)
	if err != nil {
		return site.CityStats{}, err
	}
	sites, _, err := s.loadSites(ctx, slug)
	if err != nil {
		return site.CityStats{}, err
	}
	return site.ComputeStats(slug, sites, s.cfg.TopN)
}

// Refresh drops cached copies of a city's data so the next Open reloads it. Sessions
// already open keep their snapshot.
func (s *service) Refresh(ctx context.Context, citySlug string) error {
	slug, err := normalizeSlug(citySlug)
	if err != nil {
		return err
	}
	inv, ok := s.repo.(site.Invalidator)
	if !ok {
		return nil
	}
	if err := inv.Invalidate(ctx, slug); err != nil {
		return site.NetworkError("invalidate "+slug, err)
	}
	s.logger.Info("city data refreshed", "city", slug)
	return nil
}

func (s *service) Open(ctx context.Context, citySlug string) (OpenResult, error) {
	slug, err := normalizeSlug(citySlug)
	if err != nil {
		return OpenResult{}, err
	}
	s.sweep()

	watch := metrics.Start()
	cities, err := s.repo.LoadCities(ctx)
	if err != nil {
		return OpenResult{}, err
	}
	city, ok := site.FindCity(cities, slug)
	if !ok {
		return OpenResult{}, site.NotFoundError("city " + slug + " not found")
	}
	sites, cacheHit, err := s.loadSites(ctx, slug)
	if err != nil {
		return OpenResult{}, err
	}
	load := watch.Stop(s.cfg.SourceName, len(sites), cacheHit)

	id := s.newID()
	sess, err := NewSession(id, city, sites, s.cfg.DefaultFilter, s.cfg.TopN, s.repo, s.logger)
	if err != nil {
		return OpenResult{}, err
	}

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		sess.Shutdown()
		return OpenResult{}, apperrors.New(CodeSessionLimit, "too many open sessions")
	}
	s.sessions[id] = &sessionEntry{session: sess, lastSeen: s.now()}
	s.mu.Unlock()

	s.logger.Info("session opened", "session_id", id, "city", slug, "sites", load.Items, "cache_hit", load.CacheHit, "duration_ms", load.DurationMs)
	return OpenResult{Session: sess, Load: load}, nil
}

func (s *service) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.New(CodeSessionNotFound, "session not found")
	}
	if s.expired(entry) {
		delete(s.sessions, id)
		go entry.session.Shutdown()
		return nil, apperrors.New(CodeSessionNotFound, "session expired")
	}
	entry.lastSeen = s.now()
	return entry.session, nil
}

func (s *service) Discard(id string) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return apperrors.New(CodeSessionNotFound, "session not found")
	}
	entry.session.Shutdown()
	return nil
}

// Close shuts every session down.
func (s *service) Close() {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for id, entry := range s.sessions {
		entries = append(entries, entry)
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	for _, entry := range entries {
		entry.session.Shutdown()
	}
}

func (s *service) sweep() {
	s.mu.Lock()
	var stale []*sessionEntry
	for id, entry := range s.sessions {
		if s.expired(entry) {
			stale = append(stale, entry)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	if len(stale) == 0 {
		return
	}
	s.logger.Debug("expired sessions swept", "count", len(stale))
	for _, entry := range stale {
		entry.session.Shutdown()
	}
}

func (s *service) expired(entry *sessionEntry) bool {
	return s.now().Sub(entry.lastSeen) > s.cfg.SessionTTL
}

func (s *service) loadSites(ctx context.Context, slug string) ([]site.Site, bool, error) {
	if cached, ok := s.repo.(CachedSiteLoader); ok {
		return cached.LoadSitesCached(ctx, slug)
	}
	sites, err := s.repo.LoadSites(ctx, slug)
	return sites, false, err
}

func normalizeSlug(raw string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if slug == "" {
		return "", site.InvalidArgumentError("city slug cannot be empty")
	}
	return slug, nil
}
