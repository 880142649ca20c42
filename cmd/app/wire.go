//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/chargemap/internal/bootstrap"
	"github.com/yanqian/chargemap/internal/domain/explorer"
	"github.com/yanqian/chargemap/internal/infra/config"
	httpiface "github.com/yanqian/chargemap/internal/interface/http"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		provideLogger,
		provideExplorerConfig,
		bootstrap.NewCacheStore,
		bootstrap.NewSiteRepository,
		explorer.NewService,
		provideHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
