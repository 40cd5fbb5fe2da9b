package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepnetlabs/mailtriage/internal/resilience"
)

func fastRetry(maxAttempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestFetch_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notified-emails/email-1", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"from":"alice@example.com","subject":"Hi","htmlBody":"<p>hi</p>"}}`))
	}))
	defer srv.Close()

	c := New(WithRetryConfig(fastRetry(2)))
	record, err := c.Fetch(context.Background(), "email-1", "token-123", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "email-1", record.ID)
	assert.Equal(t, "alice@example.com", record.From)
	assert.Equal(t, "Hi", record.Subject)
	_, degraded := record.HeaderValue(FetchFailedHeader)
	assert.False(t, degraded)
}

func TestFetch_DecodesBareRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"from":"bob@example.com","subject":"Bare","htmlBody":""}`))
	}))
	defer srv.Close()

	c := New(WithRetryConfig(fastRetry(2)))
	record, err := c.Fetch(context.Background(), "email-2", "token", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", record.From)
	assert.Equal(t, "Bare", record.Subject)
}

func TestFetch_TransientFailureDegradesAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(WithRetryConfig(fastRetry(3)))
	record, err := c.Fetch(context.Background(), "email-3", "token", srv.URL)

	// Exhausted retries degrade rather than fail.
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "email-3", record.ID)
	assert.Equal(t, DegradedFrom, record.From)

	v, ok := record.HeaderValue(FetchFailedHeader)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	assert.NotEmpty(t, record.HTMLBody)
}

func TestFetch_NonTransientStatusDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such email", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(WithRetryConfig(fastRetry(3)))
	record, err := c.Fetch(context.Background(), "email-4", "token", srv.URL)

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, DegradedFrom, record.From)
}

func TestFetch_ContextCancellationPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(WithRetryConfig(fastRetry(3)))
	_, err := c.Fetch(ctx, "email-5", "token", srv.URL)
	require.Error(t, err)
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		id      string
		want    string
	}{
		{
			"plain base",
			"https://api.example.com",
			"abc",
			"https://api.example.com/notified-emails/abc",
		},
		{
			"trailing slash trimmed",
			"https://api.example.com/v1/",
			"abc",
			"https://api.example.com/v1/notified-emails/abc",
		},
		{
			"portal alias rewritten",
			"https://portal.keepnetlabs.com",
			"abc",
			"https://api.keepnetlabs.com/notified-emails/abc",
		},
		{
			"portal alias keeps port",
			"https://portal.keepnetlabs.com:8443",
			"abc",
			"https://api.keepnetlabs.com:8443/notified-emails/abc",
		},
		{
			"id is path escaped",
			"https://api.example.com",
			"a b",
			"https://api.example.com/notified-emails/a%20b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(tt.baseURL, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDegradedRecord(t *testing.T) {
	record := DegradedRecord("email-9", assert.AnError)
	assert.Equal(t, "email-9", record.ID)
	assert.Equal(t, DegradedFrom, record.From)
	assert.Contains(t, record.HTMLBody, assert.AnError.Error())

	record = DegradedRecord("email-9", nil)
	assert.Contains(t, record.HTMLBody, "unknown error")
}
