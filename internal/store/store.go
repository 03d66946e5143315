package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a ZIP code is not in the table
	ErrNotFound = errors.New("not found")
	// ErrCacheMiss is returned when a cache entry is absent or older than the TTL
	ErrCacheMiss = errors.New("cache miss")
)

// Location is one row of the ZIP code table
type Location struct {
	Zip       string  `json:"zip"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	State     string  `json:"state"` // two-letter postal code
}

// Label is the human-readable place name, e.g. "Ames, IA"
func (l Location) Label() string {
	switch {
	case l.City != "" && l.State != "":
		return l.City + ", " + l.State
	case l.City != "":
		return l.City
	default:
		return l.State
	}
}

// Store handles persistent storage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps :memory: databases coherent and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS zip_codes (
		zip TEXT PRIMARY KEY,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		city TEXT DEFAULT '',
		state TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS forecast_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		location TEXT NOT NULL,
		periods TEXT NOT NULL,
		fetched_at INTEGER NOT NULL,
		UNIQUE(latitude, longitude)
	);

	CREATE TABLE IF NOT EXISTS stats_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		state TEXT NOT NULL,
		year INTEGER NOT NULL,
		records TEXT NOT NULL,
		fetched_at INTEGER NOT NULL,
		UNIQUE(state, year)
	);

	CREATE INDEX IF NOT EXISTS idx_zip_codes_state ON zip_codes(state);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveZip saves or updates a single ZIP code
func (s *Store) SaveZip(ctx context.Context, loc Location) error {
	query := `INSERT OR REPLACE INTO zip_codes (zip, latitude, longitude, city, state)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, loc.Zip, loc.Latitude, loc.Longitude, loc.City, loc.State)
	return err
}

// ImportZips upserts a batch of ZIP codes in one transaction and returns the
// number of rows written.
func (s *Store) ImportZips(ctx context.Context, locs []Location) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO zip_codes (zip, latitude, longitude, city, state)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing import: %w", err)
	}
	defer stmt.Close()

	for _, loc := range locs {
		if _, err := stmt.ExecContext(ctx, loc.Zip, loc.Latitude, loc.Longitude, loc.City, loc.State); err != nil {
			return 0, fmt.Errorf("importing zip %s: %w", loc.Zip, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return len(locs), nil
}

// LookupZip retrieves a ZIP code's coordinates and state
func (s *Store) LookupZip(ctx context.Context, zip string) (*Location, error) {
	query := `SELECT zip, latitude, longitude, city, state FROM zip_codes WHERE zip = ?`

	var loc Location
	err := s.db.QueryRowContext(ctx, query, zip).Scan(&loc.Zip, &loc.Latitude, &loc.Longitude, &loc.City, &loc.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("zip %s: %w", zip, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &loc, nil
}

// CountZips returns the number of ZIP codes loaded
func (s *Store) CountZips(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM zip_codes`).Scan(&n)
	return n, err
}

// coordKey rounds coordinates so nearby lookups share a cache row
func coordKey(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// CacheForecast stores fetched forecast periods for a coordinate
func (s *Store) CacheForecast(ctx context.Context, lat, lon float64, location string, periods []engine.ForecastPeriod, fetchedAt time.Time) error {
	periodsJSON, err := json.Marshal(periods)
	if err != nil {
		return fmt.Errorf("encoding forecast: %w", err)
	}

	query := `INSERT OR REPLACE INTO forecast_cache (latitude, longitude, location, periods, fetched_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, coordKey(lat), coordKey(lon), location, string(periodsJSON), fetchedAt.Unix())
	return err
}

// GetCachedForecast retrieves cached forecast periods no older than ttl
func (s *Store) GetCachedForecast(ctx context.Context, lat, lon float64, now time.Time, ttl time.Duration) (string, []engine.ForecastPeriod, error) {
	query := `SELECT location, periods, fetched_at FROM forecast_cache WHERE latitude = ? AND longitude = ?`

	var location, periodsJSON string
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, query, coordKey(lat), coordKey(lon)).Scan(&location, &periodsJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrCacheMiss
	}
	if err != nil {
		return "", nil, err
	}
	if expired(fetchedAt, now, ttl) {
		return "", nil, ErrCacheMiss
	}

	var periods []engine.ForecastPeriod
	if err := json.Unmarshal([]byte(periodsJSON), &periods); err != nil {
		return "", nil, err
	}

	return location, periods, nil
}

// CacheStats stores fetched crop statistics for a state and year
func (s *Store) CacheStats(ctx context.Context, state string, year int, records []engine.CropRecord, fetchedAt time.Time) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}

	query := `INSERT OR REPLACE INTO stats_cache (state, year, records, fetched_at)
		VALUES (?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, state, year, string(recordsJSON), fetchedAt.Unix())
	return err
}

// GetCachedStats retrieves cached crop statistics no older than ttl
func (s *Store) GetCachedStats(ctx context.Context, state string, year int, now time.Time, ttl time.Duration) ([]engine.CropRecord, error) {
	query := `SELECT records, fetched_at FROM stats_cache WHERE state = ? AND year = ?`

	var recordsJSON string
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, query, state, year).Scan(&recordsJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	if expired(fetchedAt, now, ttl) {
		return nil, ErrCacheMiss
	}

	var records []engine.CropRecord
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return nil, err
	}

	return records, nil
}

// PurgeCache deletes cache rows fetched before the cutoff
func (s *Store) PurgeCache(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"forecast_cache", "stats_cache"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE fetched_at < ?", before.Unix())
		if err != nil {
			return total, fmt.Errorf("purging %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// a zero ttl disables caching
func expired(fetchedAt int64, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(time.Unix(fetchedAt, 0)) > ttl
}
