package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRateLimitRetries = 3
	DefaultRateLimitBackoff = 60 * time.Second
	maxErrorBodyBytes       = 4096
)

// TokenProvider hands out bearer tokens; forceRefresh bypasses any cache.
type TokenProvider interface {
	AccessToken(ctx context.Context, forceRefresh bool) (string, error)
}

type ClientConfig struct {
	BaseURL  string
	TenantID string
	// RequestsPerSecond throttles requests before they are sent; 0 disables throttling.
	RequestsPerSecond float64
	RateLimitRetries  int
	RateLimitBackoff  time.Duration
	HTTPClient        *http.Client
}

// Client issues authenticated GET requests against the Xero accounting API.
type Client struct {
	baseURL          string
	tenantID         string
	httpClient       *http.Client
	tokens           TokenProvider
	limiter          *rate.Limiter
	rateLimitRetries int
	rateLimitBackoff time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg ClientConfig, tokens TokenProvider) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retries := cfg.RateLimitRetries
	if retries <= 0 {
		retries = DefaultRateLimitRetries
	}
	backoff := cfg.RateLimitBackoff
	if backoff <= 0 {
		backoff = DefaultRateLimitBackoff
	}

	c := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		tenantID:         cfg.TenantID,
		httpClient:       httpClient,
		tokens:           tokens,
		rateLimitRetries: retries,
		rateLimitBackoff: backoff,
		sleep:            sleepContext,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Fetch GETs a resource and decodes the JSON object it returns.
// 429 responses are retried after a fixed backoff up to the retry budget; a 401
// forces one token refresh and a single retry. Anything else non-2xx fails at once.
func (c *Client) Fetch(ctx context.Context, resource string, params url.Values) (Response, error) {
	endpoint := c.baseURL + "/" + resource
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	rateLimited := 0
	authRetried := false
	forceRefresh := false

	for {
		token, err := c.tokens.AccessToken(ctx, forceRefresh)
		if err != nil {
			return nil, err
		}
		forceRefresh = false

		status, body, err := c.get(ctx, endpoint, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRequestFailed, resource, err)
		}

		switch {
		case status >= 200 && status < 300:
			var resp Response
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("%w: %s: invalid JSON response: %v", ErrRequestFailed, resource, err)
			}
			return resp, nil

		case status == http.StatusTooManyRequests:
			if rateLimited >= c.rateLimitRetries {
				return nil, fmt.Errorf("%w: %s after %d retries", ErrRateLimited, resource, rateLimited)
			}
			rateLimited++
			log.Printf("Rate limit hit on %s. Waiting %s before retry %d/%d...", resource, c.rateLimitBackoff, rateLimited, c.rateLimitRetries)
			if err := c.sleep(ctx, c.rateLimitBackoff); err != nil {
				return nil, err
			}

		case status == http.StatusUnauthorized:
			if authRetried {
				return nil, fmt.Errorf("%w: %s", ErrAuthExpired, resource)
			}
			authRetried = true
			forceRefresh = true
			log.Printf("Unauthorized response from %s, forcing token refresh", resource)

		default:
			return nil, &RequestError{Resource: resource, StatusCode: status, Body: string(body)}
		}
	}
}

func (c *Client) get(ctx context.Context, endpoint, token string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Xero-Tenant-ID", c.tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	limit := int64(-1)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		limit = maxErrorBodyBytes
	}
	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}
