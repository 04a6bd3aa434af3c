package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"bloomwatch/internal/types"
)

// appeearsAPIBase is the default NASA AppEEARS API base URL.
// Overridable in tests via VegetationClientConfig.BaseURL.
const appeearsAPIBase = "https://appeears.earthdatacloud.nasa.gov"

// vegetationProduct is the MODIS Terra 250m 16-day vegetation index product
// sampled for point requests.
const vegetationProduct = "MOD13Q1.061"

// VegetationClientConfig holds the configuration for creating a
// VegetationHTTPClient. Token is a NASA Earthdata bearer token.
// A zero Policy falls back to DefaultPolicy.
type VegetationClientConfig struct {
	Token   string
	BaseURL string // Override for testing; defaults to appeearsAPIBase
	Policy  Policy
	Logger  *slog.Logger
}

// VegetationSample is one satellite composite observation for a point.
// Indices the upstream product does not carry are NaN.
type VegetationSample struct {
	Date  time.Time
	NDVI  float64
	GNDVI float64
	SAVI  float64
	EVI   float64
}

// vegetationResponse mirrors the point-sample response body. Optional indices
// come back as nulls, hence the pointer fields.
type vegetationResponse struct {
	Samples []struct {
		Date  string   `json:"date"`
		NDVI  *float64 `json:"ndvi"`
		GNDVI *float64 `json:"gndvi"`
		SAVI  *float64 `json:"savi"`
		EVI   *float64 `json:"evi"`
	} `json:"samples"`
}

// VegetationHTTPClient fetches vegetation index samples from the NASA AppEEARS
// point-sample API through BaseClient, inheriting the platform's circuit
// breaker, retry, and error mapping behavior.
type VegetationHTTPClient struct {
	base    *BaseClient
	token   string
	baseURL string
	logger  *slog.Logger
}

// NewVegetationClient creates a new VegetationHTTPClient.
func NewVegetationClient(httpClient *http.Client, cfg VegetationClientConfig) *VegetationHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = appeearsAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}

	base := NewBaseClient(httpClient, FeedVegetation, policy)

	return &VegetationHTTPClient{
		base:    base,
		token:   cfg.Token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// NewVegetationClientWithBase creates a VegetationHTTPClient with a
// pre-configured BaseClient. This is useful for testing when you want to
// control the BaseClient configuration (e.g., disable retries).
func NewVegetationClientWithBase(base *BaseClient, cfg VegetationClientConfig) *VegetationHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = appeearsAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &VegetationHTTPClient{
		base:    base,
		token:   cfg.Token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// FetchSamples retrieves vegetation index samples for the location over
// [start, end]. Samples without an NDVI reading are dropped. Results are
// sorted by date ascending.
func (c *VegetationHTTPClient) FetchSamples(ctx context.Context, loc types.Location, start, end time.Time) ([]VegetationSample, error) {
	q := url.Values{}
	q.Set("product", vegetationProduct)
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	q.Set("startDate", start.Format(time.DateOnly))
	q.Set("endDate", end.Format(time.DateOnly))

	reqURL := fmt.Sprintf("%s/api/v1/point-sample?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create vegetation sample request",
			err,
		)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.InfoContext(ctx, "fetching vegetation samples",
		"product", vegetationProduct,
		"latitude", loc.Latitude,
		"longitude", loc.Longitude,
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("FetchSamples", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "FetchSamples")
	}

	var parsed vegetationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamVegetation,
			"failed to decode vegetation sample response",
			err,
		)
	}

	samples := make([]VegetationSample, 0, len(parsed.Samples))
	for _, s := range parsed.Samples {
		if s.NDVI == nil {
			continue
		}
		date, err := time.Parse(time.DateOnly, s.Date)
		if err != nil {
			continue
		}
		samples = append(samples, VegetationSample{
			Date:  date,
			NDVI:  *s.NDVI,
			GNDVI: optionalIndex(s.GNDVI),
			SAVI:  optionalIndex(s.SAVI),
			EVI:   optionalIndex(s.EVI),
		})
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Date.Before(samples[j].Date) })

	c.logger.InfoContext(ctx, "vegetation samples retrieved", "samples", len(samples))

	return samples, nil
}

func optionalIndex(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// handleErrorResponse reads and logs the error body from a non-2xx response,
// then returns an appropriate AppError.
func (c *VegetationHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("AppEEARS API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	return types.NewAppError(
		types.ErrCodeUpstreamVegetation,
		fmt.Sprintf("AppEEARS returned %d: %s", resp.StatusCode, operation),
		fmt.Errorf("AppEEARS %s returned %d: %s", operation, resp.StatusCode, bodyStr),
	)
}

// wrapError prefixes BaseClient.Do failures with the operation name. The base
// client already scopes error codes to the vegetation feed, so codes pass through.
func (c *VegetationHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("AppEEARS %s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamVegetation,
		fmt.Sprintf("AppEEARS %s failed", operation),
		err,
	)
}
