package weather

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
)

// OpenMeteoClient fetches daily lows from the Open-Meteo API. It has no API
// key and no US-only coverage, so it backs up the NWS client.
type OpenMeteoClient struct {
	httpClient *http.Client
	baseURL    string
	days       int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewOpenMeteoClient creates a new Open-Meteo client returning one period per day
func NewOpenMeteoClient(baseURL string, days int, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *OpenMeteoClient {
	if days < 1 {
		days = 7
	}
	return &OpenMeteoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		days:       days,
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *OpenMeteoClient) Name() string {
	return "openmeteo"
}

// openMeteoResponse represents the API response. Values are pointers because
// the API sends null for days it has no data for.
type openMeteoResponse struct {
	Daily struct {
		Time        []string   `json:"time"`
		MinTemp     []*float64 `json:"temperature_2m_min"`
		MaxTemp     []*float64 `json:"temperature_2m_max"`
		WeatherCode []*int     `json:"weather_code"`
	} `json:"daily"`
}

// Forecast fetches daily minimum temperatures in Fahrenheit
func (c *OpenMeteoClient) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	start := time.Now()
	f, err := c.forecast(ctx, lat, lon)
	c.metrics.ObserveUpstream(c.Name(), time.Since(start), err)
	return f, err
}

func (c *OpenMeteoClient) forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	params := url.Values{}
	params.Add("latitude", fmt.Sprintf("%.4f", lat))
	params.Add("longitude", fmt.Sprintf("%.4f", lon))
	params.Add("daily", "temperature_2m_min,temperature_2m_max,weather_code")
	params.Add("temperature_unit", "fahrenheit")
	params.Add("timezone", "auto")
	params.Add("forecast_days", fmt.Sprintf("%d", c.days))

	var data openMeteoResponse
	if err := fetchJSON(ctx, c.httpClient, c.baseURL+"?"+params.Encode(), nil, &data); err != nil {
		return nil, err
	}

	periods := make([]engine.ForecastPeriod, 0, len(data.Daily.Time))
	for i := range data.Daily.Time {
		date, err := time.Parse("2006-01-02", data.Daily.Time[i])
		if err != nil {
			c.logger.Debug("skipping day with bad date", "date", data.Daily.Time[i])
			continue
		}

		name := date.Weekday().String()
		if i == 0 {
			name = "Today"
		}

		low := at(data.Daily.MinTemp, i)
		high := at(data.Daily.MaxTemp, i)
		condition := "Unknown"
		if code := at(data.Daily.WeatherCode, i); code != nil {
			condition = describeWeatherCode(*code)
		}

		periods = append(periods, engine.ForecastPeriod{
			Name:             name,
			TemperatureValue: low,
			TemperatureUnit:  "F",
			ShortCondition:   condition,
			LongDetails:      dailyDetails(condition, low, high),
		})
	}

	return &Forecast{Periods: periods}, nil
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func dailyDetails(condition string, low, high *float64) string {
	switch {
	case low != nil && high != nil:
		return fmt.Sprintf("%s. Low around %.0f°F, high near %.0f°F.", condition, *low, *high)
	case low != nil:
		return fmt.Sprintf("%s. Low around %.0f°F.", condition, *low)
	default:
		return condition + "."
	}
}

// describeWeatherCode maps WMO weather interpretation codes onto short text
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code <= 3:
		return "Partly Cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain Showers"
	case code == 85 || code == 86:
		return "Snow Showers"
	case code >= 95:
		return "Thunderstorms"
	default:
		return "Unknown"
	}
}
