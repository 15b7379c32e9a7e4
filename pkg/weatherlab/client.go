// Package weatherlab provides a client for the public WeatherLab cyclone
// forecast downloads. Each forecast date publishes one paired-track CSV
// holding every ensemble member's track for every active storm.
package weatherlab

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the public download root for FNV3 ensemble paired-track
// files.
const DefaultBaseURL = "https://deepmind.google.com/science/weatherlab/download/cyclones/FNV3/ensemble_mean/paired/csv"

// DefaultModel is the forecast system whose files the default base URL serves.
const DefaultModel = "FNV3"

// ErrNotPublished reports that no forecast file exists for the requested
// date. Files appear a few hours after the 00Z model run, so callers walking
// a date range skip dates that return this.
var ErrNotPublished = eris.New("weatherlab: forecast not published")

// Client fetches published WeatherLab forecast files.
type Client interface {
	// FetchForecast downloads and parses the paired-track file for a date.
	// Returns ErrNotPublished when the date has no file.
	FetchForecast(ctx context.Context, date time.Time) (*Forecast, error)
	// ForecastURL returns the download URL for a date's file.
	ForecastURL(date time.Time) string
}

// Option configures the WeatherLab client.
type Option func(*httpClient)

// WithBaseURL sets a custom download root (for testing or mirrors).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel sets the forecast system prefix used in file names. Callers
// changing the model usually set a matching base URL as well.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a WeatherLab download client. The feed is public, so no
// credentials are needed.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Clone request for retry (body is nil for GET requests).
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "weatherlab: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("weatherlab: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) ForecastURL(date time.Time) string {
	return fmt.Sprintf("%s/%s_%sT00_00_paired.csv", c.baseURL, c.model, date.UTC().Format("2006-01-02"))
}

func (c *httpClient) FetchForecast(ctx context.Context, date time.Time) (*Forecast, error) {
	reqURL := c.ForecastURL(date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "weatherlab: create request")
	}
	req.Header.Set("Accept", "text/csv")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "weatherlab: request failed")
	}

	if statusCode == http.StatusNotFound {
		return nil, eris.Wrapf(ErrNotPublished, "weatherlab: no file for %s", date.UTC().Format("2006-01-02"))
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("weatherlab: unexpected status %d from %s", statusCode, reqURL)
	}

	f, err := ParseForecast(ctx, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	f.Model = c.model
	if f.InitTime.IsZero() {
		// Header-only file for a quiet day: stamp the requested run time.
		f.InitTime = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	}
	return f, nil
}
