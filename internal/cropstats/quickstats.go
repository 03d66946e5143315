// Package cropstats fetches weekly crop progress statistics from the USDA
// NASS QuickStats API.
package cropstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/growcalendar/grow-calendar/internal/observability"
)

// ErrMissingAPIKey is returned when no QuickStats key is configured
var ErrMissingAPIKey = errors.New("nass api key is not configured")

// QuickStatsClient fetches crop progress records for a state
type QuickStatsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewQuickStatsClient creates a new client for the QuickStats API
func NewQuickStatsClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *QuickStatsClient {
	return &QuickStatsClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		metrics:    metrics,
		logger:     logger,
	}
}

func (c *QuickStatsClient) Name() string {
	return "nass"
}

// quickStatsResponse represents the API response structure
type quickStatsResponse struct {
	Data []quickStatsRow `json:"data"`
}

// year arrives as a number from api_GET but as a string from some mirrors
type quickStatsRow struct {
	CommodityDesc    string          `json:"commodity_desc"`
	StatisticCatDesc string          `json:"statisticcat_desc"`
	Value            string          `json:"Value"`
	UnitDesc         string          `json:"unit_desc"`
	Year             json.RawMessage `json:"year"`
}

// quickStatsError is the body QuickStats sends with a 400
type quickStatsError struct {
	Error []string `json:"error"`
}

// Progress fetches this year's survey crop progress rows for a state
func (c *QuickStatsClient) Progress(ctx context.Context, state string, year int) ([]engine.CropRecord, error) {
	start := time.Now()
	records, err := c.progress(ctx, state, year)
	c.metrics.ObserveUpstream(c.Name(), time.Since(start), err)
	return records, err
}

func (c *QuickStatsClient) progress(ctx context.Context, state string, year int) ([]engine.CropRecord, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("source_desc", "SURVEY")
	params.Add("sector_desc", "CROPS")
	params.Add("statisticcat_desc", "PROGRESS")
	params.Add("agg_level_desc", "STATE")
	params.Add("state_alpha", strings.ToUpper(state))
	params.Add("year", strconv.Itoa(year))
	params.Add("format", "JSON")

	fullURL := fmt.Sprintf("%s/api_GET/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching crop progress: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// QuickStats answers an empty query with 400 and "no data"
		var qe quickStatsError
		if resp.StatusCode == http.StatusBadRequest && json.Unmarshal(body, &qe) == nil && noData(qe.Error) {
			c.logger.Debug("no crop progress published", "state", state, "year", year)
			return []engine.CropRecord{}, nil
		}
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var qsResp quickStatsResponse
	if err := json.Unmarshal(body, &qsResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	records := make([]engine.CropRecord, 0, len(qsResp.Data))
	for _, row := range qsResp.Data {
		records = append(records, engine.CropRecord{
			CommodityName:     row.CommodityDesc,
			StatisticCategory: row.StatisticCatDesc,
			Value:             strings.TrimSpace(row.Value),
			Unit:              row.UnitDesc,
			Year:              parseYear(row.Year, year),
		})
	}

	return records, nil
}

func noData(msgs []string) bool {
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m), "no data") {
			return true
		}
	}
	return false
}

func parseYear(raw json.RawMessage, fallback int) int {
	s := strings.Trim(string(raw), `" `)
	if y, err := strconv.Atoi(s); err == nil {
		return y
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
