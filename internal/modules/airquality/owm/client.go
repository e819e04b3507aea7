// Package owm is the shared HTTP client for the OpenWeatherMap REST APIs
// used by the geocoding and air pollution gateways.
package owm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aqi-explorer/internal/observability"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNoCredential is returned, without any network traffic, when no API key
// is configured.
var ErrNoCredential = errors.New("owm: no api credential configured")

// maxBody bounds how much of a response is read.
const maxBody = 1 << 20

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("owm %s: unexpected status %d: %s", e.Service, e.Code, e.Body)
}

// UpstreamRecorder receives one observation per call.
type UpstreamRecorder interface {
	ObserveUpstream(service, outcome string, d time.Duration)
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Transport overrides the base round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
	Recorder  UpstreamRecorder
	Logger    *slog.Logger
}

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	recorder UpstreamRecorder
	logger   *slog.Logger
}

func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		recorder: opts.Recorder,
		logger:   logger,
	}
}

// HasCredential reports whether calls can be attempted at all.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// GetJSON issues GET baseURL+path with the credential appended and decodes
// the body into out. service labels metrics and errors.
func (c *Client) GetJSON(ctx context.Context, service, path string, query url.Values, out any) error {
	if !c.HasCredential() {
		return ErrNoCredential
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("appid", c.apiKey)
	endpoint := c.baseURL + path + "?" + q.Encode()

	start := time.Now()
	outcome := observability.OutcomeError
	defer func() {
		if c.recorder != nil {
			c.recorder.ObserveUpstream(service, outcome, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("owm %s: build request: %w", service, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = observability.OutcomeUnavailable
		return fmt.Errorf("owm %s: %w", service, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		outcome = observability.OutcomeUnavailable
		return fmt.Errorf("owm %s: read body: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusNotFound {
			outcome = observability.OutcomeNotFound
		}
		c.logger.Debug("upstream non-2xx", "service", service, "status", resp.StatusCode)
		return &StatusError{Service: service, Code: resp.StatusCode, Body: snippet(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("owm %s: decode: %w", service, err)
	}
	outcome = observability.OutcomeOK
	return nil
}

// redact keeps the api key out of error strings, which end up in logs.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
