package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
)

// NWSClient fetches period forecasts from the National Weather Service API
// (api.weather.gov). It resolves a coordinate to a forecast office grid
// first, then fetches that grid's forecast.
type NWSClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewNWSClient creates a new NWS client. The API rejects requests without a
// User-Agent identifying the caller.
func NewNWSClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *NWSClient {
	return &NWSClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *NWSClient) Name() string {
	return "nws"
}

type pointsResponse struct {
	Properties struct {
		Forecast         string `json:"forecast"`
		RelativeLocation struct {
			Properties struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []nwsPeriod `json:"periods"`
	} `json:"properties"`
}

type nwsPeriod struct {
	Name             string          `json:"name"`
	Temperature      json.RawMessage `json:"temperature"`
	TemperatureUnit  string          `json:"temperatureUnit"`
	ShortForecast    string          `json:"shortForecast"`
	DetailedForecast string          `json:"detailedForecast"`
}

// Forecast fetches the period forecast for a coordinate
func (c *NWSClient) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	start := time.Now()
	f, err := c.forecast(ctx, lat, lon)
	c.metrics.ObserveUpstream(c.Name(), time.Since(start), err)
	return f, err
}

func (c *NWSClient) forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	header := http.Header{
		"User-Agent": {c.userAgent},
		"Accept":     {"application/geo+json"},
	}

	var points pointsResponse
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	if err := fetchJSON(ctx, c.httpClient, pointsURL, header, &points); err != nil {
		return nil, fmt.Errorf("resolving grid point: %w", err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("no forecast link for %.4f,%.4f", lat, lon)
	}

	var resp forecastResponse
	if err := fetchJSON(ctx, c.httpClient, points.Properties.Forecast, header, &resp); err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	periods := make([]engine.ForecastPeriod, 0, len(resp.Properties.Periods))
	for _, p := range resp.Properties.Periods {
		value, unit := decodeTemperature(p.Temperature, p.TemperatureUnit)
		if value == nil && len(p.Temperature) > 0 {
			c.logger.Debug("unparseable temperature", "period", p.Name, "raw", string(p.Temperature))
		}
		periods = append(periods, engine.ForecastPeriod{
			Name:             p.Name,
			TemperatureValue: value,
			TemperatureUnit:  unit,
			ShortCondition:   p.ShortForecast,
			LongDetails:      p.DetailedForecast,
		})
	}

	rel := points.Properties.RelativeLocation.Properties
	location := rel.City
	if rel.City != "" && rel.State != "" {
		location = rel.City + ", " + rel.State
	}

	return &Forecast{Location: location, Periods: periods}, nil
}

// decodeTemperature accepts a bare number, a numeric string like "30°F", or a
// quantitative value object {"value": 30, "unitCode": "wmoUnit:degF"}.
// Anything else yields a nil value.
func decodeTemperature(raw json.RawMessage, unit string) (*float64, string) {
	unit = normalizeUnit(unit)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, unit
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, unit
		}
		if v, ok := engine.ParseTemperature(s); ok {
			return &v, unit
		}
	case '{':
		var q struct {
			Value    *float64 `json:"value"`
			UnitCode string   `json:"unitCode"`
		}
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, unit
		}
		if q.UnitCode != "" {
			unit = normalizeUnit(q.UnitCode)
		}
		return q.Value, unit
	default:
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v, unit
		}
	}
	return nil, unit
}

func normalizeUnit(u string) string {
	// "C", "°C" and "wmoUnit:degC" all end in C
	if strings.HasSuffix(strings.ToUpper(u), "C") {
		return "C"
	}
	return "F"
}
