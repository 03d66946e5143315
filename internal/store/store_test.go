package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "growcal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestZipTable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LookupZip(ctx, "50010")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.ImportZips(ctx, []Location{
		{Zip: "50010", Latitude: 42.0347, Longitude: -93.62, City: "Ames", State: "IA"},
		{Zip: "02134", Latitude: 42.3539, Longitude: -71.1337, City: "Allston", State: "MA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loc, err := s.LookupZip(ctx, "50010")
	require.NoError(t, err)
	assert.Equal(t, "IA", loc.State)
	assert.Equal(t, "Ames, IA", loc.Label())
	assert.InDelta(t, 42.0347, loc.Latitude, 1e-9)

	// re-import replaces the row
	require.NoError(t, s.SaveZip(ctx, Location{Zip: "50010", Latitude: 42, Longitude: -93, City: "Ames", State: "IA"}))
	loc, err = s.LookupZip(ctx, "50010")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, loc.Latitude, 1e-9)

	count, err := s.CountZips(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.Ping(ctx))
}

func TestForecastCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2024, time.October, 15, 12, 0, 0, 0, time.UTC)
	temp := 31.0

	_, _, err := s.GetCachedForecast(ctx, 42.0347, -93.62, now, time.Hour)
	assert.ErrorIs(t, err, ErrCacheMiss)

	periods := []engine.ForecastPeriod{
		{Name: "Tonight", TemperatureValue: &temp, TemperatureUnit: "F", ShortCondition: "Clear"},
		{Name: "Wednesday", TemperatureUnit: "F"},
	}
	require.NoError(t, s.CacheForecast(ctx, 42.0347, -93.62, "Ames, IA", periods, now))

	location, got, err := s.GetCachedForecast(ctx, 42.03471, -93.62002, now.Add(30*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Ames, IA", location)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].TemperatureValue)
	assert.Equal(t, 31.0, *got[0].TemperatureValue)
	assert.Nil(t, got[1].TemperatureValue)

	_, _, err = s.GetCachedForecast(ctx, 42.0347, -93.62, now.Add(2*time.Hour), time.Hour)
	assert.ErrorIs(t, err, ErrCacheMiss, "stale entries are misses")

	_, _, err = s.GetCachedForecast(ctx, 42.0347, -93.62, now, 0)
	assert.ErrorIs(t, err, ErrCacheMiss, "zero ttl disables the cache")
}

func TestStatsCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)

	records := []engine.CropRecord{
		{CommodityName: "CORN", StatisticCategory: "PROGRESS", Value: "45", Unit: "PCT PLANTED", Year: 2024},
	}
	require.NoError(t, s.CacheStats(ctx, "IA", 2024, records, now))

	got, err := s.GetCachedStats(ctx, "IA", 2024, now.Add(time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	_, err = s.GetCachedStats(ctx, "IA", 2023, now, time.Hour)
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = s.GetCachedStats(ctx, "NE", 2024, now, time.Hour)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPurgeCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(48 * time.Hour)

	require.NoError(t, s.CacheStats(ctx, "IA", 2024, nil, old))
	require.NoError(t, s.CacheStats(ctx, "NE", 2024, nil, fresh))
	require.NoError(t, s.CacheForecast(ctx, 1, 2, "x", nil, old))

	n, err := s.PurgeCache(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.GetCachedStats(ctx, "NE", 2024, fresh, time.Hour)
	assert.NoError(t, err)
}
