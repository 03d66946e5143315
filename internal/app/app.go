// Package app wires configuration into the store, providers and service
// shared by the growcal CLI and the growcald daemon.
package app

import (
	"fmt"
	"log/slog"

	"github.com/growcalendar/grow-calendar/internal/catalog"
	"github.com/growcalendar/grow-calendar/internal/config"
	"github.com/growcalendar/grow-calendar/internal/cropstats"
	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
	"github.com/growcalendar/grow-calendar/internal/service"
	"github.com/growcalendar/grow-calendar/internal/store"
	"github.com/growcalendar/grow-calendar/internal/weather"
	"github.com/jonboulle/clockwork"
)

// App holds the long-lived components built from a Config
type App struct {
	Config  *config.Config
	Store   *store.Store
	Catalog engine.Catalog
	Service *service.Service
	Logger  *slog.Logger
}

// New opens the database, loads the catalog and builds the service. metrics
// may be nil.
func New(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*App, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	forecasts := weather.NewChain(logger,
		weather.NewNWSClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.HTTPTimeout, metrics, logger),
		weather.NewOpenMeteoClient(cfg.OpenMeteoBaseURL, cfg.ForecastPeriods, cfg.HTTPTimeout, metrics, logger),
	)
	stats := cropstats.NewQuickStatsClient(cfg.NASSBaseURL, cfg.NASSAPIKey, cfg.HTTPTimeout, metrics, logger)

	svc := service.New(service.Options{
		Zips:            st,
		Weather:         forecasts,
		Stats:           stats,
		Cache:           st,
		Catalog:         cat,
		Policy:          cfg.FrostPolicy,
		ForecastPeriods: cfg.ForecastPeriods,
		CacheTTL:        cfg.CacheTTL,
		Clock:           clockwork.NewRealClock(),
		Metrics:         metrics,
		Logger:          logger,
	})

	logger.Debug("application initialized",
		"db", cfg.DBPath,
		"catalog_crops", len(cat),
		"frost_policy", cfg.FrostPolicy,
	)

	return &App{
		Config:  cfg,
		Store:   st,
		Catalog: cat,
		Service: svc,
		Logger:  logger,
	}, nil
}

// Close releases the database
func (a *App) Close() error {
	return a.Store.Close()
}
