package bea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/JonMunkholm/nipa/internal/logging"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when the API keeps answering 429 after retries.
var ErrRateLimited = errors.New("BEA API rate limit exceeded")

// maxPreview caps how much of a bad response body ends up in errors and logs.
const maxPreview = 500

// Client provides methods for interacting with the BEA API.
// It is safe for concurrent use; the limiter serializes request starts.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	observer   Observer
}

// NewClient creates a BEA client. Zero config fields take DefaultConfig
// values, except RequestInterval where zero or less disables limiting.
// A nil httpClient gets a plain http.Client.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("BEA API key is required")
	}

	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if config.RequestInterval > 0 {
		limit = rate.Every(config.RequestInterval)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
	}, nil
}

// SetObserver registers a request observer, typically the ingest metrics.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// GetParameterValues lists the values of a dataset parameter. Results are
// cached for the configured TTL.
func (c *Client) GetParameterValues(ctx context.Context, dataset, parameter string) ([]core.CatalogEntry, error) {
	cacheKey := fmt.Sprintf("paramvalues:%s:%s", dataset, parameter)
	if cached, found := c.cache.Get(cacheKey); found {
		if entries, ok := cached.([]core.CatalogEntry); ok {
			logging.FromContext(ctx).Debug("BEA parameter values cache hit", "cache_key", cacheKey, "entries", len(entries))
			return entries, nil
		}
	}

	params := url.Values{}
	params.Set("method", MethodGetParameterValues)
	params.Set("DatasetName", dataset)
	params.Set("ParameterName", parameter)

	var env envelope
	if err := c.doRequestWithRetry(ctx, MethodGetParameterValues, params, &env); err != nil {
		return nil, err
	}
	if apiErr := env.err(); apiErr != nil {
		return nil, apiErr
	}

	entries := make([]core.CatalogEntry, 0, len(env.BEAAPI.Results.ParamValue))
	for _, pv := range env.BEAAPI.Results.ParamValue {
		if e := pv.entry(); e.TableName != "" {
			entries = append(entries, e)
		}
	}

	c.cache.Set(cacheKey, entries, cache.DefaultExpiration)
	return entries, nil
}

// GetNIPATables returns the NIPA table catalog.
func (c *Client) GetNIPATables(ctx context.Context) ([]core.CatalogEntry, error) {
	return c.GetParameterValues(ctx, DatasetNIPA, "TableName")
}

// GetNIPAData fetches every observation of one table at one frequency.
// year is a year list or "X" for all years. A "no data" API error yields an
// empty slice; other API errors are returned as *APIError.
func (c *Client) GetNIPAData(ctx context.Context, tableName string, f core.Frequency, year string) ([]core.RawRecord, error) {
	if year == "" {
		year = "X"
	}

	params := url.Values{}
	params.Set("method", MethodGetData)
	params.Set("DatasetName", DatasetNIPA)
	params.Set("TableName", tableName)
	params.Set("Frequency", f.Code())
	params.Set("Year", year)

	var env envelope
	if err := c.doRequestWithRetry(ctx, MethodGetData, params, &env); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", tableName, f, err)
	}
	if apiErr := env.err(); apiErr != nil {
		if apiErr.IsNoData() {
			logging.FromContext(ctx).Debug("no BEA data for frequency", "table", tableName, "frequency", f)
			return []core.RawRecord{}, nil
		}
		return nil, fmt.Errorf("get %s %s: %w", tableName, f, apiErr)
	}

	records := env.BEAAPI.Results.Data
	if records == nil {
		records = []core.RawRecord{}
	}
	return records, nil
}

// ClearCache drops all cached parameter values.
func (c *Client) ClearCache() {
	c.cache.Flush()
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// doRequestWithRetry wraps doRequest with exponential backoff for 429, 5xx
// and transport failures.
func (c *Client) doRequestWithRetry(ctx context.Context, method string, params url.Values, result any) error {
	logger := logging.FromContext(ctx)
	backoff := c.config.RequestInterval
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff * time.Duration(1<<(attempt-1))
			logger.Warn("retrying BEA request", "method", method, "attempt", attempt, "wait", wait, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err = c.doRequest(ctx, method, params, result)
		var retry *retryableError
		if err == nil || !errors.As(err, &retry) {
			return err
		}
	}
	return err
}

// doRequest performs one rate-limited GET and decodes the JSON body.
func (c *Client) doRequest(ctx context.Context, method string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("UserID", c.config.APIKey)
	q.Set("ResultFormat", "JSON")

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create BEA request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, "error")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{fmt.Errorf("BEA request failed: %w", err)}
	}
	defer resp.Body.Close()

	c.observe(method, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{fmt.Errorf("read BEA response: %w", err)}
	}

	logging.FromContext(ctx).Debug("BEA API request",
		"method", method,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retryableError{fmt.Errorf("%w (status 429)", ErrRateLimited)}
	case resp.StatusCode >= 500:
		return &retryableError{fmt.Errorf("unexpected status %d from BEA API: %s", resp.StatusCode, preview(body))}
	case resp.StatusCode != http.StatusOK:
		// Error objects can come with 4xx statuses; surface them when present.
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.err() != nil {
			return env.err()
		}
		return fmt.Errorf("unexpected status %d from BEA API: %s", resp.StatusCode, preview(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parse BEA response: %w (body: %s)", err, preview(body))
	}
	return nil
}

func (c *Client) observe(method, status string) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, status)
	}
}

func preview(body []byte) string {
	if len(body) > maxPreview {
		return string(body[:maxPreview]) + "..."
	}
	return string(body)
}
