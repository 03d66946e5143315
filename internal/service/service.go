// Package service turns a ZIP code into the weekly frost outlook, the state's
// crop progress and the combined grow calendar. It owns the clock, the caches
// and the upstream providers; the engine stays pure.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
	"github.com/growcalendar/grow-calendar/internal/store"
	"github.com/growcalendar/grow-calendar/internal/weather"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidZip      = errors.New("invalid zip code")
	ErrUnknownZip      = errors.New("unknown zip code")
	ErrDataUnavailable = errors.New("data unavailable")
)

// ZipResolver maps ZIP codes to coordinates and states
type ZipResolver interface {
	LookupZip(ctx context.Context, zip string) (*store.Location, error)
	CountZips(ctx context.Context) (int, error)
}

// StatsProvider fetches raw crop progress rows for a state
type StatsProvider interface {
	Name() string
	Progress(ctx context.Context, state string, year int) ([]engine.CropRecord, error)
}

// Cache stores upstream answers between requests
type Cache interface {
	GetCachedForecast(ctx context.Context, lat, lon float64, now time.Time, ttl time.Duration) (string, []engine.ForecastPeriod, error)
	CacheForecast(ctx context.Context, lat, lon float64, location string, periods []engine.ForecastPeriod, fetchedAt time.Time) error
	GetCachedStats(ctx context.Context, state string, year int, now time.Time, ttl time.Duration) ([]engine.CropRecord, error)
	CacheStats(ctx context.Context, state string, year int, records []engine.CropRecord, fetchedAt time.Time) error
}

// Options configures a Service. Cache and Metrics may be nil.
type Options struct {
	Zips    ZipResolver
	Weather weather.Provider
	Stats   StatsProvider
	Cache   Cache
	Catalog engine.Catalog

	Policy          engine.FrostPolicy
	ForecastPeriods int
	CacheTTL        time.Duration

	Clock   clockwork.Clock
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Service answers weather, crop progress and calendar queries
type Service struct {
	zips    ZipResolver
	weather weather.Provider
	stats   StatsProvider
	cache   Cache
	catalog engine.Catalog

	policy   engine.FrostPolicy
	periods  int
	cacheTTL time.Duration

	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Service
func New(opts Options) *Service {
	s := &Service{
		zips:     opts.Zips,
		weather:  opts.Weather,
		stats:    opts.Stats,
		cache:    opts.Cache,
		catalog:  opts.Catalog,
		policy:   opts.Policy,
		periods:  opts.ForecastPeriods,
		cacheTTL: opts.CacheTTL,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.policy == "" {
		s.policy = engine.PolicyWeekMinimum
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.metrics.SetCatalogSize(len(s.catalog))
	return s
}

// Catalog returns the shared, read-only instruction catalog
func (s *Service) Catalog() engine.Catalog {
	return s.catalog
}

// Policy returns the configured week-level frost policy
func (s *Service) Policy() engine.FrostPolicy {
	return s.policy
}

// Resolve validates a ZIP code and looks up its location
func (s *Service) Resolve(ctx context.Context, rawZip string) (*store.Location, error) {
	zip, ok := store.NormalizeZip(rawZip)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZip, rawZip)
	}

	loc, err := s.zips.LookupZip(ctx, zip)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZip, zip)
	}
	if err != nil {
		s.logger.Error("zip lookup failed", "zip", zip, "error", err)
		return nil, fmt.Errorf("%w: zip lookup: %w", ErrDataUnavailable, err)
	}
	return loc, nil
}

// Weather returns the normalized weekly forecast for a ZIP code
func (s *Service) Weather(ctx context.Context, zip string) (*engine.WeeklyWeather, error) {
	loc, err := s.Resolve(ctx, zip)
	if err != nil {
		return nil, err
	}
	return s.weatherFor(ctx, loc)
}

func (s *Service) weatherFor(ctx context.Context, loc *store.Location) (*engine.WeeklyWeather, error) {
	location, periods, err := s.forecast(ctx, loc)
	if err != nil {
		s.logger.Error("forecast unavailable", "zip", loc.Zip, "error", err)
		return nil, fmt.Errorf("%w: forecast: %w", ErrDataUnavailable, err)
	}

	if s.periods > 0 && len(periods) > s.periods {
		periods = periods[:s.periods]
	}

	// the ZIP table's place name is what the user searched for
	if label := loc.Label(); label != "" {
		location = label
	}

	weekly, err := engine.Normalize(location, periods, s.policy)
	if err != nil {
		s.logger.Error("normalizing forecast", "zip", loc.Zip, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	s.metrics.ObserveWeather(weekly.Periods)
	return weekly, nil
}

func (s *Service) forecast(ctx context.Context, loc *store.Location) (string, []engine.ForecastPeriod, error) {
	now := s.clock.Now()

	if s.cache != nil && s.cacheTTL > 0 {
		location, periods, err := s.cache.GetCachedForecast(ctx, loc.Latitude, loc.Longitude, now, s.cacheTTL)
		if err == nil && len(periods) > 0 {
			s.metrics.ObserveCache("forecast", true)
			return location, periods, nil
		}
		if err != nil && !errors.Is(err, store.ErrCacheMiss) {
			s.logger.Warn("forecast cache read failed", "error", err)
		}
		s.metrics.ObserveCache("forecast", false)
	}

	f, err := s.weather.Forecast(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return "", nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.CacheForecast(ctx, loc.Latitude, loc.Longitude, f.Location, f.Periods, now); err != nil {
			s.logger.Warn("forecast cache write failed", "error", err)
		}
	}
	return f.Location, f.Periods, nil
}

// CropProgressReport is the crop progress answer for one ZIP code
type CropProgressReport struct {
	Zip     string                `json:"zip"`
	State   string                `json:"state"`
	Results []engine.CropProgress `json:"results"`
}

// CropProgress groups this year's crop progress statistics for the ZIP's
// state and resolves each crop's phase for the current month.
func (s *Service) CropProgress(ctx context.Context, zip string) (*CropProgressReport, error) {
	loc, err := s.Resolve(ctx, zip)
	if err != nil {
		return nil, err
	}
	return s.cropProgressFor(ctx, loc)
}

func (s *Service) cropProgressFor(ctx context.Context, loc *store.Location) (*CropProgressReport, error) {
	now := s.clock.Now()

	records, err := s.records(ctx, loc.State, now)
	if err != nil {
		s.logger.Error("crop statistics unavailable", "zip", loc.Zip, "state", loc.State, "error", err)
		return nil, fmt.Errorf("%w: crop statistics: %w", ErrDataUnavailable, err)
	}

	results := engine.Group(records, s.catalog, now.Month())
	s.metrics.ObservePhases(results)

	return &CropProgressReport{Zip: loc.Zip, State: loc.State, Results: results}, nil
}

func (s *Service) records(ctx context.Context, state string, now time.Time) ([]engine.CropRecord, error) {
	year := now.Year()

	if s.cache != nil && s.cacheTTL > 0 {
		records, err := s.cache.GetCachedStats(ctx, state, year, now, s.cacheTTL)
		if err == nil {
			s.metrics.ObserveCache("stats", true)
			return records, nil
		}
		if !errors.Is(err, store.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", "error", err)
		}
		s.metrics.ObserveCache("stats", false)
	}

	records, err := s.stats.Progress(ctx, state, year)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.CacheStats(ctx, state, year, records, now); err != nil {
			s.logger.Warn("stats cache write failed", "error", err)
		}
	}
	return records, nil
}

// Status summarizes what the service has loaded
type Status struct {
	Zips        int                `json:"zips"`
	CatalogSize int                `json:"catalogCrops"`
	FrostPolicy engine.FrostPolicy `json:"frostPolicy"`
	Time        time.Time          `json:"time"`
}

// Status reports the loaded ZIP table and catalog sizes
func (s *Service) Status(ctx context.Context) (*Status, error) {
	n, err := s.zips.CountZips(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting zip codes: %w", err)
	}
	return &Status{
		Zips:        n,
		CatalogSize: len(s.catalog),
		FrostPolicy: s.policy,
		Time:        s.clock.Now(),
	}, nil
}
