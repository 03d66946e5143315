package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/growcalendar/grow-calendar/internal/engine"
)

var (
	// ErrNoPeriods is returned when a provider answers without any forecast periods
	ErrNoPeriods = errors.New("forecast has no periods")
	// ErrNoForecast is returned when every provider in a Chain failed
	ErrNoForecast = errors.New("no forecast available")
)

// Forecast is a provider's raw answer before normalization
type Forecast struct {
	Location string
	Periods  []engine.ForecastPeriod
}

// Provider fetches forecast periods for a coordinate
type Provider interface {
	Name() string
	Forecast(ctx context.Context, lat, lon float64) (*Forecast, error)
}

// Chain asks each provider in turn and returns the first non-empty forecast
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a fallback chain. Providers are tried in the given order.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: logger}
}

func (c *Chain) Name() string {
	return "chain"
}

// Forecast returns the first successful provider's forecast
func (c *Chain) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	var errs []error
	for _, p := range c.providers {
		f, err := p.Forecast(ctx, lat, lon)
		if err == nil && (f == nil || len(f.Periods) == 0) {
			err = ErrNoPeriods
		}
		if err == nil {
			return f, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("weather provider failed", "provider", p.Name(), "error", err)
	}

	if len(errs) == 0 {
		return nil, ErrNoForecast
	}
	return nil, fmt.Errorf("%w: %w", ErrNoForecast, errors.Join(errs...))
}

// fetchJSON performs a GET and decodes a 200 response body into out
func fetchJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
