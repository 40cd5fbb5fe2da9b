// Package fetcher retrieves notified-email records from the source-data API.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/internal/resilience"
)

// FetchFailedHeader marks a synthetic degraded record so downstream stages
// can classify under insufficient data instead of aborting the run.
const FetchFailedHeader = "X-Fetch-Failed"

// DegradedFrom is the sender placeholder on a synthetic degraded record.
const DegradedFrom = "unknown@unavailable.local"

// hostAliases rewrites known portal hostnames to their canonical API host
// before calling out.
var hostAliases = map[string]string{
	"portal.keepnetlabs.com": "api.keepnetlabs.com",
}

// StatusError is a typed fetch error carrying the upstream HTTP status and
// response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client fetches notified-email records over HTTP with bearer auth.
type Client struct {
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetryConfig overrides the retry policy around the fetch call.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// New creates a fetch client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the raw email record by ID. After exhausted retries it
// returns a synthetic degraded record rather than an error: an IR pipeline
// must always produce some verdict, so fetch failure degrades instead of
// aborting. Only context cancellation propagates.
func (c *Client) Fetch(ctx context.Context, id, token, baseURL string) (*model.EmailRecord, error) {
	retryCfg := c.retry
	retryCfg.OnRetry = resilience.RetryLogger("fetch", "get notified email")

	record, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.EmailRecord, error) {
		return c.fetchOnce(ctx, id, token, baseURL)
	})
	if err == nil {
		record.ID = id
		return record, nil
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(err, "fetcher: canceled")
	}

	zap.L().Warn("fetch failed after retries, continuing with degraded record",
		zap.String("email_id", id),
		zap.Error(err),
	)
	return DegradedRecord(id, err), nil
}

func (c *Client) fetchOnce(ctx context.Context, id, token, baseURL string) (*model.EmailRecord, error) {
	endpoint, err := buildURL(baseURL, id)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: get notified email")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return decodeRecord(body)
}

// decodeRecord accepts both response shapes the provider emits: an envelope
// {"data": record} and the bare record.
func decodeRecord(body []byte) (*model.EmailRecord, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		body = envelope.Data
	}

	var record model.EmailRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, eris.Wrap(err, "fetcher: decode email record")
	}
	return &record, nil
}

// buildURL normalizes the base URL (rewriting known portal hostnames to the
// canonical API host) and appends the notified-emails path.
func buildURL(baseURL, id string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse base url %s", baseURL)
	}
	if canonical, ok := hostAliases[strings.ToLower(u.Hostname())]; ok {
		host := canonical
		if port := u.Port(); port != "" {
			host = canonical + ":" + port
		}
		u.Host = host
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/notified-emails/" + id
	return u.String(), nil
}

// DegradedRecord synthesizes a placeholder record for a failed fetch. The
// marker header and placeholder sender let every downstream stage run and
// resolve to insufficient-data findings.
func DegradedRecord(id string, cause error) *model.EmailRecord {
	detail := "unknown error"
	if cause != nil {
		detail = cause.Error()
	}
	return &model.EmailRecord{
		ID:       id,
		From:     DegradedFrom,
		Subject:  "Notified email unavailable",
		HTMLBody: "The notified email could not be retrieved from the source API: " + detail,
		Headers: []model.Header{
			{Name: FetchFailedHeader, Value: "true"},
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
