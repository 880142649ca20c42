// Package main provides the sitectl CLI for browsing site data from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yanqian/chargemap/internal/bootstrap"
	"github.com/yanqian/chargemap/internal/domain/site"
	"github.com/yanqian/chargemap/internal/infra/config"
	"github.com/yanqian/chargemap/internal/infra/snapshot"
	"github.com/yanqian/chargemap/pkg/logger"
)

var version = "dev"

// env resolves the collaborators commands need. Tests replace it with in-memory ones.
type env struct {
	out     io.Writer
	repo    func() (site.Repository, error)
	objects func() (snapshot.ObjectStore, string, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(e *env) *cobra.Command {
	var (
		sourceKind  string
		fixturePath string
		logLevel    string
	)

	rootCmd := &cobra.Command{
		Use:           "sitectl",
		Short:         "Browse EV charging site candidates",
		Long:          `sitectl loads cities and scored candidate sites from the configured source and prints rankings, details and statistics.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&sourceKind, "source", "", "Site source: api, postgres, objectstore or memory (default: from config)")
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "Fixture file for the memory source")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")

	if e == nil {
		var cfg *config.Config
		loadConfig := func() (*config.Config, *slog.Logger, error) {
			if cfg == nil {
				if sourceKind != "" {
					os.Setenv("SOURCE_KIND", sourceKind)
				}
				if fixturePath != "" {
					os.Setenv("SOURCE_FIXTURE_PATH", fixturePath)
				}
				loaded, err := config.Load()
				if err != nil {
					return nil, nil, err
				}
				cfg = loaded
			}
			return cfg, logger.NewWithWriter(os.Stderr, logLevel), nil
		}
		e = &env{
			out: os.Stdout,
			repo: func() (site.Repository, error) {
				cfg, log, err := loadConfig()
				if err != nil {
					return nil, err
				}
				return bootstrap.NewSourceRepository(cfg, log), nil
			},
			objects: func() (snapshot.ObjectStore, string, error) {
				cfg, log, err := loadConfig()
				if err != nil {
					return nil, "", err
				}
				objects, err := bootstrap.NewObjectStore(cfg.Source.ObjectStore, log)
				if err != nil {
					return nil, "", err
				}
				return objects, cfg.Source.ObjectStore.Prefix, nil
			},
		}
	}

	rootCmd.AddCommand(
		newCitiesCmd(e),
		newTopCmd(e),
		newSiteCmd(e),
		newStatsCmd(e),
		newSnapshotCmd(e),
	)
	return rootCmd
}

func requireCity(city string) (string, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return "", fmt.Errorf("--city is required")
	}
	return city, nil
}
