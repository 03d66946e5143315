package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service settings.
type Config struct {
	Port        int
	DBPath      string
	CatalogPath string // empty means the embedded catalog
	StaticDir   string

	NWSBaseURL       string
	NWSUserAgent     string
	OpenMeteoBaseURL string
	NASSBaseURL      string
	NASSAPIKey       string

	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration
	CacheTTL        time.Duration
	ForecastPeriods int
	FrostPolicy     engine.FrostPolicy

	LogLevel  string
	LogFormat string
}

// Dir is the per-user directory holding config.yaml and the database.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".growcal"
	}
	return filepath.Join(home, ".growcal")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 4000)
	v.SetDefault("db_path", filepath.Join(Dir(), "growcal.db"))
	v.SetDefault("catalog_path", "")
	v.SetDefault("static_dir", "web")
	v.SetDefault("nws.base_url", "https://api.weather.gov")
	v.SetDefault("nws.user_agent", "grow-calendar (contact@example.com)")
	v.SetDefault("openmeteo.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("nass.base_url", "https://quickstats.nass.usda.gov/api")
	v.SetDefault("nass.api_key", "")
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("forecast_periods", 7)
	v.SetDefault("frost_policy", string(engine.PolicyWeekMinimum))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration from a .env file (if present), the config file and
// GROWCAL_* environment variables, in increasing order of precedence. An empty
// cfgFile looks for config.{yaml,toml,json} in Dir and tolerates its absence.
func Load(cfgFile string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GROWCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// plain PORT and NASS_API_KEY are honoured for existing deployments
	_ = v.BindEnv("port", "GROWCAL_PORT", "PORT")
	_ = v.BindEnv("nass.api_key", "GROWCAL_NASS_API_KEY", "NASS_API_KEY")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	policy, err := engine.ParseFrostPolicy(v.GetString("frost_policy"))
	if err != nil {
		return nil, fmt.Errorf("invalid frost_policy: %w", err)
	}

	cfg := &Config{
		Port:        v.GetInt("port"),
		DBPath:      v.GetString("db_path"),
		CatalogPath: v.GetString("catalog_path"),
		StaticDir:   v.GetString("static_dir"),

		NWSBaseURL:       strings.TrimRight(v.GetString("nws.base_url"), "/"),
		NWSUserAgent:     v.GetString("nws.user_agent"),
		OpenMeteoBaseURL: v.GetString("openmeteo.base_url"),
		NASSBaseURL:      strings.TrimRight(v.GetString("nass.base_url"), "/"),
		NASSAPIKey:       v.GetString("nass.api_key"),

		HTTPTimeout:     v.GetDuration("http_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		CacheTTL:        v.GetDuration("cache_ttl"),
		ForecastPeriods: v.GetInt("forecast_periods"),
		FrostPolicy:     policy,

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.NWSUserAgent == "" {
		return errors.New("nws.user_agent is required")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http_timeout must be a positive duration")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be a positive duration")
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must not be negative")
	}
	if c.ForecastPeriods < 1 {
		return fmt.Errorf("forecast_periods must be at least 1, got %d", c.ForecastPeriods)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
