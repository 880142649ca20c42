package main

import (
	"log/slog"

	"github.com/yanqian/chargemap/internal/domain/explorer"
	"github.com/yanqian/chargemap/internal/infra/config"
	httpiface "github.com/yanqian/chargemap/internal/interface/http"
	"github.com/yanqian/chargemap/pkg/logger"
)

func provideLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Log.Level)
}

func provideExplorerConfig(cfg *config.Config) (explorer.Config, error) {
	filter, err := cfg.Explorer.DefaultFilter()
	if err != nil {
		return explorer.Config{}, err
	}
	return explorer.Config{
		DefaultFilter: filter,
		TopN:          cfg.Explorer.TopN,
		SessionTTL:    cfg.Explorer.SessionTTL,
		MaxSessions:   cfg.Explorer.MaxSessions,
		SourceName:    cfg.Source.Kind,
	}, nil
}

func provideHandler(cfg *config.Config, svc explorer.Service, logger *slog.Logger) *httpiface.Handler {
	return httpiface.NewHandler(svc, cfg.Explorer.DetailWaitMax, logger)
}
