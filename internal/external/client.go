// Package external provides the acquisition layer between BloomWatch domain
// logic and upstream earth-observation APIs. All outbound HTTP calls are routed
// through the BaseClient, which enforces consistent resilience patterns: circuit
// breaking, retries with exponential backoff, trace propagation, and error mapping.
package external

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"bloomwatch/internal/types"

	"github.com/sony/gobreaker/v2"
)

// clientUserAgent identifies BloomWatch to the NASA upstream APIs.
const clientUserAgent = "BloomWatch/1.0"

// breakerTripThreshold is the number of consecutive failures before a feed's
// circuit breaker opens.
const breakerTripThreshold = 5

// breakerCountInterval is the cyclic period over which the breaker resets its
// failure counts while closed.
const breakerCountInterval = 60 * time.Second

// Feed identifies an upstream earth-observation data feed and the error code
// its failures surface as. Exhausted retries and network-level failures map to
// Code so API responses name the feed that went down; rate limiting keeps its
// own code regardless of feed.
type Feed struct {
	Name string
	Code types.ErrorCode
}

var (
	// FeedClimate is the NASA POWER daily climate feed.
	FeedClimate = Feed{Name: "nasa-power", Code: types.ErrCodeUpstreamClimate}
	// FeedVegetation is the NASA AppEEARS vegetation index feed.
	FeedVegetation = Feed{Name: "nasa-appeears", Code: types.ErrCodeUpstreamVegetation}
)

// Policy configures retry and circuit breaker behavior for a feed client.
// Values are sourced from DataConfig so operators can tune them per deployment.
type Policy struct {
	MaxRetries      int
	MinWait         time.Duration
	MaxWait         time.Duration
	BreakerCooldown time.Duration // how long an open breaker waits before probing
}

// DefaultPolicy returns the defaults applied when no policy is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		MinWait:         500 * time.Millisecond,
		MaxWait:         10 * time.Second,
		BreakerCooldown: 30 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a per-feed circuit breaker to enforce
// consistent resilience patterns on all outbound HTTP calls. The climate and
// vegetation clients build on it to inherit this behavior.
//
// BaseClient serves bodyless GET requests only; it does not snapshot request
// bodies for retry replay.
type BaseClient struct {
	client  *http.Client
	feed    Feed
	breaker *gobreaker.CircuitBreaker[*http.Response]
	policy  Policy
	sleepFn func(time.Duration) // for testability; defaults to time.Sleep
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient for the given feed. The circuit breaker is
// named after the feed and its open-state cooldown comes from the policy.
func NewBaseClient(
	httpClient *http.Client,
	feed Feed,
	policy Policy,
	opts ...BaseClientOption,
) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        feed.Name,
		MaxRequests: 1,
		Interval:    breakerCountInterval,
		Timeout:     policy.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > breakerTripThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return newBaseClient(httpClient, feed, cb, policy, opts...)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. This is useful for testing breaker transitions directly.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	feed Feed,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	policy Policy,
	opts ...BaseClientOption,
) *BaseClient {
	return newBaseClient(httpClient, feed, breaker, policy, opts...)
}

func newBaseClient(
	httpClient *http.Client,
	feed Feed,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	policy Policy,
	opts ...BaseClientOption,
) *BaseClient {
	bc := &BaseClient{
		client:  httpClient,
		feed:    feed,
		breaker: breaker,
		policy:  policy,
		sleepFn: time.Sleep,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Retry on 429/5xx (respecting Retry-After headers)
//  5. Error mapping to types.AppError
//
// On success (2xx/3xx/4xx other than 429), Do returns the response as-is.
// The caller is responsible for closing the response body.
//
// On exhausted retries, Do returns a types.AppError carrying the feed's error
// code; an open circuit breaker or exhausted 429s carry the rate limit code.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	// Inject trace ID from context if available.
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}

	req.Header.Set("User-Agent", clientUserAgent)

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.policy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// Treat 5xx and 429 as errors for the circuit breaker.
			if r.StatusCode >= 500 {
				return r, fmt.Errorf("%s returned %d", c.feed.Name, r.StatusCode)
			}
			if r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("%s returned 429", c.feed.Name)
			}
			return r, nil
		})

		if err == nil {
			// Success -- 2xx/3xx/4xx (not 429).
			return resp, nil
		}

		// Track the last response/error for final error mapping.
		lastErr = err
		if resp != nil {
			// Close previous response body before retry, unless this is the last attempt.
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// If the circuit breaker is open, do not retry.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		// Only retry on 429 and 5xx.
		if resp != nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			// Non-retryable error status -- return as-is.
			return resp, nil
		}

		// If there are more attempts remaining, sleep before retrying.
		if attempt < maxAttempts-1 {
			wait := c.computeBackoff(attempt, resp)
			c.sleepFn(wait)
		}
	}

	// Close the last response body if we're returning an error.
	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, c.mapError(lastResp, lastErr)
}

// computeBackoff determines the wait duration before the next retry attempt.
// It respects the Retry-After header if present, otherwise uses exponential
// backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	// Check Retry-After header.
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.policy.MaxWait {
					wait = c.policy.MaxWait
				}
				return wait
			}
			// Try parsing as HTTP-date.
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.policy.MinWait
				}
				if wait > c.policy.MaxWait {
					wait = c.policy.MaxWait
				}
				return wait
			}
		}
	}

	// Exponential backoff with full jitter: [0, min(MaxWait, MinWait * 2^attempt)]
	base := float64(c.policy.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(c.policy.MaxWait)
	if base > maxWait {
		base = maxWait
	}

	// Full jitter: random value in [MinWait, base].
	minWait := float64(c.policy.MinWait)
	if base <= minWait {
		return c.policy.MinWait
	}
	jittered := minWait + rand.Float64()*(base-minWait)
	return time.Duration(jittered)
}

// mapError translates HTTP-level failures into AppErrors scoped to the feed.
// Callers can return the result directly; no further code remapping is needed.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	// Circuit breaker open.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s circuit breaker is open", c.feed.Name),
			err,
		)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(
				types.ErrCodeUpstreamRateLimited,
				fmt.Sprintf("%s rate limit exceeded", c.feed.Name),
				err,
			)
		case resp.StatusCode >= 500:
			return types.NewAppError(
				c.feed.Code,
				fmt.Sprintf("%s returned %d after retries", c.feed.Name, resp.StatusCode),
				err,
			)
		}
	}

	// Network-level failure (connection refused, DNS, timeout): the feed is
	// unreachable, which callers treat the same as an upstream outage.
	return types.NewAppError(
		c.feed.Code,
		fmt.Sprintf("%s request failed", c.feed.Name),
		err,
	)
}
