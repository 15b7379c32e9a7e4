package weatherlab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchForecast_Success(t *testing.T) {
	t.Parallel()

	fixture := pairedCSV(
		"2024-09-23 00:00:00,AL092024,-1,2024-09-23 12:00:00,12.0,25.1,-80.0,975.0,85.0,30.0,150.0,130.0,90.0,120.0,80.0,70.0,50.0,60.0,40.0,35.0,25.0,30.0",
		"2024-09-23 00:00:00,AL092024,0,2024-09-23 18:00:00,18.0,25.8,-80.6,970.0,90.0,25.0,160.0,140.0,95.0,125.0,85.0,75.0,55.0,65.0,45.0,40.0,30.0,35.0",
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/FNV3_2024-09-23T00_00_paired.csv", r.URL.Path)
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	f, err := client.FetchForecast(context.Background(), time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, "FNV3", f.Model)
	assert.Equal(t, time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC), f.InitTime)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, []string{"AL092024"}, f.Storms())
}

func TestFetchForecast_NotPublished(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchForecast(context.Background(), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPublished))
	assert.Contains(t, err.Error(), "2026-01-15")
}

func TestFetchForecast_QuietDay(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(publishedHeader + "\n"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	f, err := client.FetchForecast(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Empty(t, f.Rows)
	// No data rows to take the run time from, so the requested date stands in.
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), f.InitTime)
}

func TestFetchForecast_RetryOn503(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	fixture := pairedCSV(
		"2024-09-23 00:00:00,AL092024,-1,2024-09-23 12:00:00,12.0,25.1,-80.0,975.0,85.0,,,,,,,,,,,,,",
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`service unavailable`))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	f, err := client.FetchForecast(context.Background(), time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, f.Rows, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchForecast_RetryExhausted(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`internal error`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchForecast(context.Background(), time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(3), attempts.Load()) // 3 attempts total
}

func TestFetchForecast_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchForecast(ctx, time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC))

	require.Error(t, err)
}

func TestForecastURL_Default(t *testing.T) {
	t.Parallel()

	client := NewClient()
	got := client.ForecastURL(time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, DefaultBaseURL+"/FNV3_2025-09-12T00_00_paired.csv", got)
}

func TestForecastURL_CustomModel(t *testing.T) {
	t.Parallel()

	client := NewClient(WithBaseURL("https://mirror.example.com/csv"), WithModel("FNV4"))
	got := client.ForecastURL(time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "https://mirror.example.com/csv/FNV4_2025-09-12T00_00_paired.csv", got)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient()
	hc := c.(*httpClient)
	assert.Equal(t, DefaultBaseURL, hc.baseURL)
	assert.Equal(t, "FNV3", hc.model)
	assert.NotNil(t, hc.http)
	assert.Equal(t, 60*time.Second, hc.http.Timeout)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	customClient := &http.Client{}
	c := NewClient(WithHTTPClient(customClient))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
}

func TestRetryableStatusCode(t *testing.T) {
	assert.True(t, retryableStatusCode(429))
	assert.True(t, retryableStatusCode(500))
	assert.True(t, retryableStatusCode(502))
	assert.True(t, retryableStatusCode(503))
	assert.False(t, retryableStatusCode(200))
	assert.False(t, retryableStatusCode(304))
	assert.False(t, retryableStatusCode(404))
}
