package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
	"github.com/growcalendar/grow-calendar/internal/store"
	"github.com/growcalendar/grow-calendar/internal/weather"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.October, 15, 9, 0, 0, 0, time.UTC)

type fakeZips map[string]store.Location

func (f fakeZips) LookupZip(_ context.Context, zip string) (*store.Location, error) {
	loc, ok := f[zip]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &loc, nil
}

func (f fakeZips) CountZips(context.Context) (int, error) {
	return len(f), nil
}

type fakeWeather struct {
	forecast *weather.Forecast
	err      error
	calls    int
}

func (f *fakeWeather) Name() string { return "fake-weather" }

func (f *fakeWeather) Forecast(context.Context, float64, float64) (*weather.Forecast, error) {
	f.calls++
	return f.forecast, f.err
}

type fakeStats struct {
	records []engine.CropRecord
	err     error
	calls   int
	year    int
	state   string
}

func (f *fakeStats) Name() string { return "fake-stats" }

func (f *fakeStats) Progress(_ context.Context, state string, year int) ([]engine.CropRecord, error) {
	f.calls++
	f.state, f.year = state, year
	return f.records, f.err
}

func temp(v float64) *float64 { return &v }

func frostyForecast() *weather.Forecast {
	names := []string{"Today", "Tonight", "Wednesday", "Wednesday Night", "Thursday", "Thursday Night", "Friday", "Friday Night"}
	temps := []float64{52, 41, 47, 31, 50, 38, 55, 20}
	f := &weather.Forecast{Location: "2 Miles N Ames, IA"}
	for i, n := range names {
		f.Periods = append(f.Periods, engine.ForecastPeriod{
			Name:             n,
			TemperatureValue: temp(temps[i]),
			TemperatureUnit:  "F",
			ShortCondition:   "Clear",
		})
	}
	return f
}

func progressRecords() []engine.CropRecord {
	return []engine.CropRecord{
		{CommodityName: "CORN", StatisticCategory: "PROGRESS", Value: "61", Unit: "PCT HARVESTED", Year: 2024},
		{CommodityName: "TOMATOES", StatisticCategory: "PROGRESS", Value: "100", Unit: "PCT HARVESTED", Year: 2024},
		{CommodityName: "ASPARAGUS", StatisticCategory: "PROGRESS", Value: "100", Unit: "PCT HARVESTED", Year: 2024},
		{CommodityName: "SORGHUM", StatisticCategory: "PROGRESS", Value: "70", Unit: "PCT HARVESTED", Year: 2024},
		{CommodityName: "CORN", StatisticCategory: "PROGRESS", Value: "88", Unit: "PCT MATURE", Year: 2024},
	}
}

func testCatalog() engine.Catalog {
	c := engine.Catalog{
		"corn": {
			Windows: map[string][]engine.MonthToken{"sowing": {"Apr", "May"}, "harvesting": {"Sep-Nov"}},
			PerPhaseGuidance: map[string]engine.PhaseGuidance{
				"sowed": {Description: "Plant into warm soil"},
			},
		},
		"tomato": {
			Windows: map[string][]engine.MonthToken{"sowing": {"Feb", "Mar"}, "transplanting": {"Apr", "May"}, "harvesting": {"Jul-Sep"}},
		},
		"asparagus": {
			Characteristics: engine.CropCharacteristics{Perennial: true, FrostTolerant: true},
			Windows:         map[string][]engine.MonthToken{"transplanting": {"Mar", "Apr"}, "harvesting": {"Apr-Jun"}},
			PerPhaseGuidance: map[string]engine.PhaseGuidance{
				"dormant": {Description: "Mulch the bed"},
			},
		},
	}
	for _, instr := range c {
		instr.Prepare()
	}
	return c
}

type fixture struct {
	svc     *Service
	weather *fakeWeather
	stats   *fakeStats
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "growcal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		weather: &fakeWeather{forecast: frostyForecast()},
		stats:   &fakeStats{records: progressRecords()},
		clock:   clockwork.NewFakeClockAt(testNow),
		metrics: observability.NewMetricsForTesting(),
	}

	opts := Options{
		Zips: fakeZips{
			"50010": {Zip: "50010", Latitude: 42.0347, Longitude: -93.62, City: "Ames", State: "IA"},
		},
		Weather:         f.weather,
		Stats:           f.stats,
		Cache:           st,
		Catalog:         testCatalog(),
		Policy:          engine.PolicyWeekMinimum,
		ForecastPeriods: 7,
		CacheTTL:        time.Hour,
		Clock:           f.clock,
		Metrics:         f.metrics,
		Logger:          observability.DiscardLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = New(opts)
	return f
}

func TestService_Resolve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	loc, err := f.svc.Resolve(ctx, " 50010-0001 ")
	require.NoError(t, err)
	assert.Equal(t, "IA", loc.State)

	_, err = f.svc.Resolve(ctx, "ames")
	assert.ErrorIs(t, err, ErrInvalidZip)

	_, err = f.svc.Resolve(ctx, "99999")
	assert.ErrorIs(t, err, ErrUnknownZip)
}

func TestService_Weather(t *testing.T) {
	f := newFixture(t, nil)

	weekly, err := f.svc.Weather(context.Background(), "50010")
	require.NoError(t, err)

	assert.Equal(t, "Ames, IA", weekly.Location)
	require.Len(t, weekly.Periods, 7, "periods beyond the configured week are dropped")
	assert.Equal(t, "Today", weekly.Current.Name)
	assert.True(t, weekly.OverallFrostRisk)
	assert.Equal(t, engine.FrostFreeze, weekly.OverallFrostType)
	require.NotNil(t, weekly.MinTemperature)
	assert.Equal(t, 31.0, *weekly.MinTemperature)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FrostPeriods.WithLabelValues("freeze")))
	assert.Equal(t, 6.0, testutil.ToFloat64(f.metrics.FrostPeriods.WithLabelValues("none")))
}

func TestService_Weather_CurrentPolicy(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Policy = engine.PolicyCurrent })

	weekly, err := f.svc.Weather(context.Background(), "50010")
	require.NoError(t, err)
	assert.False(t, weekly.OverallFrostRisk, "today is 52°F")
	assert.Equal(t, engine.FrostNone, weekly.OverallFrostType)
	assert.True(t, weekly.Periods[3].FrostRisk, "per-period annotation is unaffected")
}

func TestService_Weather_ProviderLocationWithoutZipCity(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Zips = fakeZips{"50010": {Zip: "50010", Latitude: 42, Longitude: -93}}
	})

	weekly, err := f.svc.Weather(context.Background(), "50010")
	require.NoError(t, err)
	assert.Equal(t, "2 Miles N Ames, IA", weekly.Location)
}

func TestService_Weather_Errors(t *testing.T) {
	upstream := errors.New("status 503")
	f := newFixture(t, nil)
	f.weather.err = upstream

	_, err := f.svc.Weather(context.Background(), "50010")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, upstream)

	f.weather.err = nil
	f.weather.forecast = &weather.Forecast{}
	_, err = f.svc.Weather(context.Background(), "50010")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, engine.ErrEmptyForecast)
}

func TestService_Weather_Cache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Weather(ctx, "50010")
	require.NoError(t, err)
	_, err = f.svc.Weather(ctx, "50010")
	require.NoError(t, err)
	assert.Equal(t, 1, f.weather.calls, "second request is served from cache")

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Weather(ctx, "50010")
	require.NoError(t, err)
	assert.Equal(t, 2, f.weather.calls, "stale entries are refetched")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Cache.WithLabelValues("forecast", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Cache.WithLabelValues("forecast", "miss")))
}

func TestService_Weather_NoCache(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Cache = nil })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Weather(ctx, "50010")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.weather.calls)
}

func TestService_CropProgress(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.svc.CropProgress(context.Background(), "50010")
	require.NoError(t, err)

	assert.Equal(t, "50010", report.Zip)
	assert.Equal(t, "IA", report.State)
	assert.Equal(t, "IA", f.stats.state)
	assert.Equal(t, 2024, f.stats.year)

	require.Len(t, report.Results, 4)
	byName := map[string]engine.CropProgress{}
	for _, r := range report.Results {
		byName[r.Name] = r
	}

	assert.Equal(t, engine.PhaseHarvested, byName["CORN"].CurrentPhase)
	assert.Len(t, byName["CORN"].Statistics, 2)
	assert.Equal(t, engine.PhaseCantSowYet, byName["TOMATOES"].CurrentPhase)
	assert.Equal(t, engine.PhaseDormant, byName["ASPARAGUS"].CurrentPhase)
	assert.Equal(t, engine.PhaseCantSowYet, byName["SORGHUM"].CurrentPhase)
	assert.Nil(t, byName["SORGHUM"].Instructions)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CropPhases.WithLabelValues("cant_sow_yet")))
}

func TestService_CropProgress_Cache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CropProgress(ctx, "50010")
	require.NoError(t, err)
	report, err := f.svc.CropProgress(ctx, "50010")
	require.NoError(t, err)

	assert.Equal(t, 1, f.stats.calls)
	assert.Len(t, report.Results, 4)
}

func TestService_CropProgress_Errors(t *testing.T) {
	f := newFixture(t, nil)
	f.stats.err = errors.New("status 401")

	_, err := f.svc.CropProgress(context.Background(), "50010")
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = f.svc.CropProgress(context.Background(), "1234")
	assert.ErrorIs(t, err, ErrInvalidZip)
}

func TestService_CropProgress_EmptyIsNotAnError(t *testing.T) {
	f := newFixture(t, nil)
	f.stats.records = []engine.CropRecord{}

	report, err := f.svc.CropProgress(context.Background(), "50010")
	require.NoError(t, err)
	assert.NotNil(t, report.Results)
	assert.Empty(t, report.Results)
}

func TestService_Status(t *testing.T) {
	f := newFixture(t, nil)

	status, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.Zips)
	assert.Equal(t, 3, status.CatalogSize)
	assert.Equal(t, engine.PolicyWeekMinimum, status.FrostPolicy)
	assert.Equal(t, testNow, status.Time)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CatalogSize))
}

func TestNew_Defaults(t *testing.T) {
	svc := New(Options{Zips: fakeZips{}})
	assert.Equal(t, engine.PolicyWeekMinimum, svc.Policy())
	assert.NotNil(t, svc.clock)
	assert.NotNil(t, svc.logger)
}
