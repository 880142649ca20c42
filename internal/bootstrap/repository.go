package bootstrap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/config"
	"github.com/yanqian/chargemap/internal/infra/siteapi"
	"github.com/yanqian/chargemap/internal/infra/sitecache"
	"github.com/yanqian/chargemap/internal/infra/siterepo"
	"github.com/yanqian/chargemap/internal/infra/snapshot"
)

// NewSourceRepository builds the configured site-data source. A Postgres or object
// store that cannot be reached falls back to the fixture repository.
func NewSourceRepository(cfg *config.Config, logger *slog.Logger) site.Repository {
	switch cfg.Source.Kind {
	case config.SourceAPI:
		logger.Info("site api source enabled", "base_url", cfg.Source.API.BaseURL)
		return siteapi.NewClient(siteapi.Options{
			BaseURL:           cfg.Source.API.BaseURL,
			Timeout:           cfg.Source.API.Timeout,
			RequestsPerSecond: cfg.Source.API.RequestsPerSecond,
			Burst:             cfg.Source.API.Burst,
		}, logger)
	case config.SourcePostgres:
		if repo := newPostgresSource(cfg.Source.Postgres, logger); repo != nil {
			return repo
		}
	case config.SourceObjectStore:
		if repo := newSnapshotSource(cfg.Source.ObjectStore, logger); repo != nil {
			return repo
		}
	}
	return newFixtureSource(cfg.Source.FixturePath, logger)
}

// NewCacheStore returns the Valkey store when enabled and reachable, the in-process
// store otherwise.
func NewCacheStore(cfg *config.Config, logger *slog.Logger) sitecache.Store {
	if !cfg.Cache.Valkey.Enabled {
		return sitecache.NewMemoryStore()
	}
	opt, err := buildValkeyOptions(cfg.Cache.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return sitecache.NewMemoryStore()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return sitecache.NewMemoryStore()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return sitecache.NewMemoryStore()
	}
	logger.Info("site valkey cache enabled", "addr", cfg.Cache.Valkey.Addr)
	return sitecache.NewValkeyStore(client, cfg.Cache.Valkey.Prefix)
}

// NewSiteRepository is the repository handed to the explorer: the configured source,
// behind the collection cache when caching is enabled.
func NewSiteRepository(cfg *config.Config, store sitecache.Store, logger *slog.Logger) site.Repository {
	source := NewSourceRepository(cfg, logger)
	if !cfg.Cache.Enabled || cfg.Cache.TTL <= 0 {
		return source
	}
	return sitecache.NewRepository(source, store, cfg.Cache.TTL, logger)
}

func newPostgresSource(cfg config.PostgresConfig, logger *slog.Logger) site.Repository {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using fixture repository")
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using fixture repository", "error", err)
		return nil
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using fixture repository", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using fixture repository", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres site source enabled")
	return siterepo.NewPostgresRepository(pool)
}

func newSnapshotSource(cfg config.ObjectStoreConfig, logger *slog.Logger) site.Repository {
	objects, err := NewObjectStore(cfg, logger)
	if err != nil {
		logger.Error("object store unavailable, using fixture repository", "error", err)
		return nil
	}
	logger.Info("snapshot site source enabled", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return snapshot.NewRepository(objects, cfg.Prefix, logger)
}

// NewObjectStore connects to the snapshot bucket.
func NewObjectStore(cfg config.ObjectStoreConfig, logger *slog.Logger) (*snapshot.R2Objects, error) {
	return snapshot.NewR2Objects(snapshot.R2Options{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	}, logger)
}

func newFixtureSource(path string, logger *slog.Logger) site.Repository {
	path = strings.TrimSpace(path)
	if path == "" {
		logger.Warn("no fixture configured, serving an empty site catalogue")
		return siterepo.NewMemoryRepository()
	}
	repo, err := siterepo.LoadFixture(path)
	if err != nil {
		logger.Error("failed to load site fixture, serving an empty site catalogue", "path", path, "error", err)
		return siterepo.NewMemoryRepository()
	}
	logger.Info("fixture site source enabled", "path", path)
	return repo
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
