package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"bloomwatch/internal/types"
)

// powerAPIBase is the default NASA POWER API base URL.
// Overridable in tests via PowerClientConfig.BaseURL.
const powerAPIBase = "https://power.larc.nasa.gov"

// powerMissingValue marks absent readings in POWER daily series.
const powerMissingValue = -999.0

// PowerClientConfig holds the configuration for creating a PowerHTTPClient.
// A zero Policy falls back to DefaultPolicy.
type PowerClientConfig struct {
	BaseURL string // Override for testing; defaults to powerAPIBase
	Policy  Policy
	Logger  *slog.Logger
}

// DailyClimate is a single day of climate readings for a point location.
type DailyClimate struct {
	Date          time.Time
	TemperatureC  float64
	Precipitation float64
}

// powerResponse mirrors the POWER daily point response envelope. Each parameter
// maps YYYYMMDD date keys to readings.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// PowerHTTPClient fetches daily climate data from the NASA POWER API through
// BaseClient, inheriting the platform's circuit breaker, retry, and error
// mapping behavior.
type PowerHTTPClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewPowerClient creates a new PowerHTTPClient. The httpClient timeout should
// be set appropriately for the POWER API (e.g., 30 seconds).
func NewPowerClient(httpClient *http.Client, cfg PowerClientConfig) *PowerHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = powerAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}

	base := NewBaseClient(httpClient, FeedClimate, policy)

	return &PowerHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// NewPowerClientWithBase creates a PowerHTTPClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration (e.g., disable retries).
func NewPowerClientWithBase(base *BaseClient, cfg PowerClientConfig) *PowerHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = powerAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PowerHTTPClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// FetchDaily retrieves daily temperature and precipitation for the location
// over [start, end] from the POWER temporal daily point endpoint. Days whose
// temperature reading is absent are dropped; absent precipitation is reported
// as zero. Results are sorted by date ascending.
func (c *PowerHTTPClient) FetchDaily(ctx context.Context, loc types.Location, start, end time.Time) ([]DailyClimate, error) {
	q := url.Values{}
	q.Set("parameters", "T2M,PRECTOTCORR")
	q.Set("community", "AG")
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	q.Set("start", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("format", "JSON")

	reqURL := fmt.Sprintf("%s/api/temporal/daily/point?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create POWER daily request",
			err,
		)
	}

	c.logger.InfoContext(ctx, "fetching POWER daily climate",
		"latitude", loc.Latitude,
		"longitude", loc.Longitude,
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("FetchDaily", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "FetchDaily")
	}

	var parsed powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamClimate,
			"failed to decode POWER daily response",
			err,
		)
	}

	temps := parsed.Properties.Parameter["T2M"]
	precips := parsed.Properties.Parameter["PRECTOTCORR"]
	if len(temps) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamClimate,
			"POWER response contained no temperature series",
			nil,
		)
	}

	days := make([]DailyClimate, 0, len(temps))
	for dateKey, temp := range temps {
		if temp == powerMissingValue {
			continue
		}
		date, err := time.Parse("20060102", dateKey)
		if err != nil {
			continue
		}
		precip := precips[dateKey]
		if precip == powerMissingValue {
			precip = 0
		}
		days = append(days, DailyClimate{
			Date:          date,
			TemperatureC:  temp,
			Precipitation: precip,
		})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	c.logger.InfoContext(ctx, "POWER daily climate retrieved", "days", len(days))

	return days, nil
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError.
func (c *PowerHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("POWER API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	return types.NewAppError(
		types.ErrCodeUpstreamClimate,
		fmt.Sprintf("POWER returned %d: %s", resp.StatusCode, operation),
		fmt.Errorf("POWER %s returned %d: %s", operation, resp.StatusCode, bodyStr),
	)
}

// wrapError prefixes BaseClient.Do failures with the operation name. The base
// client already scopes error codes to the climate feed, so codes pass through.
func (c *PowerHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("POWER %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamClimate,
		fmt.Sprintf("POWER %s failed", operation),
		err,
	)
}
