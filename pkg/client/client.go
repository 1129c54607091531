// Package client provides the HTTP client for the Education Data API
// enrollment endpoints, with error classification and request metrics.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the CCD enrollment endpoint of the Urban Institute
// Education Data API.
const DefaultBaseURL = "https://educationdata.urban.org/api/v1/schools/ccd/enrollment"

// Prometheus metrics for API client operations.
var (
	eduRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edu_requests_total",
		Help: "Total Education Data API requests by status",
	}, []string{"status"})

	eduRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "edu_request_duration_seconds",
		Help:    "Education Data API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	eduErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edu_errors_total",
		Help: "Total Education Data API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors and other non-2xx statuses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors (DNS, refused, timeout).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassProtocol represents a 2xx response whose body is not a page.
	ErrorClassProtocol ErrorClass = "protocol"
)

// Page is one decoded API response.
type Page struct {
	// Results are the page's records, untouched.
	Results []json.RawMessage

	// Next is the server-supplied URL of the following page ("" on the last page).
	Next string

	// Count is the total result count reported by the server, -1 if absent.
	Count int
}

// HasNext reports whether the server pointed to another page.
func (p *Page) HasNext() bool {
	return p.Next != ""
}

// wirePage mirrors the response body. Pointers distinguish absent from empty.
type wirePage struct {
	Results *[]json.RawMessage `json:"results"`
	Next    *string            `json:"next"`
	Count   *int               `json:"count"`
}

// Client is the Education Data API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the enrollment endpoint root; partition paths are appended to it
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout bounds a single page request
	Timeout time.Duration

	// MaxBodyBytes caps a single response body (0 = unlimited)
	MaxBodyBytes int64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    userAgent,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 64 << 20,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "edu-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Do performs an HTTP request and classifies the outcome.
// A non-nil response always has a 2xx status; every other outcome is
// returned as an *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	target := req.URL.String()

	startTime := time.Now()
	defer func() {
		eduRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", target).
		Str("method", req.Method).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		eduErrorsTotal.WithLabelValues(string(errClass)).Inc()
		eduRequestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Str("url", target).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: errClass,
			URL:        target,
			Message:    "request failed",
			Err:        err,
		}
	}

	eduRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errClass := c.classifyError(resp, nil)
		eduErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("API request error")

		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			URL:        target,
			Message:    resp.Status,
		}
	}

	return resp, nil
}

// GetPage fetches and decodes the page at pageURL.
// pageURL is used verbatim; it is either a partition's first-page URL or a
// "next" cursor returned by the server.
func (c *Client) GetPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if c.config.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, c.config.MaxBodyBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		eduErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			URL:        pageURL,
			Message:    "read body",
			Err:        err,
		}
	}

	if c.config.MaxBodyBytes > 0 && int64(len(data)) > c.config.MaxBodyBytes {
		return nil, c.protocolError(resp.StatusCode, pageURL, "body exceeds limit", ErrBodyTooLarge)
	}

	page, err := decodePage(data)
	if err != nil {
		return nil, c.protocolError(resp.StatusCode, pageURL, "decode page", err)
	}

	c.logger.Debug().
		Str("url", pageURL).
		Int("results", len(page.Results)).
		Bool("has_next", page.HasNext()).
		Msg("Page decoded")

	return page, nil
}

// decodePage parses a page body. A missing "results" field is an error;
// a missing or null "next" marks the last page.
func decodePage(data []byte) (*Page, error) {
	var wire wirePage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	if wire.Results == nil {
		return nil, ErrMissingResults
	}

	page := &Page{
		Results: *wire.Results,
		Count:   -1,
	}
	if wire.Next != nil {
		page.Next = *wire.Next
	}
	if wire.Count != nil {
		page.Count = *wire.Count
	}
	return page, nil
}

func (c *Client) protocolError(status int, pageURL, msg string, err error) error {
	eduErrorsTotal.WithLabelValues(string(ErrorClassProtocol)).Inc()
	c.logger.Warn().
		Err(err).
		Str("url", pageURL).
		Str("error_class", string(ErrorClassProtocol)).
		Msg("Malformed API response")
	return &APIError{
		StatusCode: status,
		ErrorClass: ErrorClassProtocol,
		URL:        pageURL,
		Message:    msg,
		Err:        err,
	}
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// IsContextError reports whether err was caused by context cancellation or
// deadline expiry rather than by the remote side.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
