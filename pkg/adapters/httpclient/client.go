// Package httpclient implements core.GraphSource and core.Preferences against
// a remote nodeBook server speaking the httpapi contract.
package httpclient

import (
	"bytes"
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

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// DefaultTimeout bounds a single request when the caller sets no deadline.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries a fresh id on every request.
const RequestIDHeader = "X-Request-ID"

// APIError represents an error response from the server.
// It unwraps to the core sentinel matching its status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code to a core sentinel, if any.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return core.ErrNotFound
	case http.StatusConflict:
		return core.ErrDuplicateDocument
	case http.StatusUnprocessableEntity:
		return core.ErrMalformedStructure
	case http.StatusBadRequest:
		return core.ErrInvalidID
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBreakerSettings overrides the circuit breaker configuration.
// Name and IsSuccessful are always set by the client.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = s
	}
}

// Client talks to a nodeBook server. Transport failures and 5xx responses
// count against a circuit breaker; once it trips, requests fail fast with
// gobreaker.ErrOpenState until the timeout elapses.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	breaker    gobreaker.Settings
	cb         *gobreaker.CircuitBreaker
}

// New creates a client targeting baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
		breaker: gobreaker.Settings{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	settings := c.breaker
	settings.Name = "nodebook-http"
	settings.IsSuccessful = isSuccessful
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
	c.cb = gobreaker.NewCircuitBreaker(settings)
	return c
}

// isSuccessful treats client errors and cancellation as the caller's fault.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

func graphPath(userID, id string) string {
	return "/v1/users/" + url.PathEscape(userID) + "/graphs/" + url.PathEscape(id)
}

// ListGraphs returns the documents available to the user.
func (c *Client) ListGraphs(ctx context.Context, userID string) ([]core.DocumentInfo, error) {
	var graphs []core.DocumentInfo
	if err := c.doJSON(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/graphs", nil, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}

// FetchRaw returns the CNL source of a document.
func (c *Client) FetchRaw(ctx context.Context, userID, id string) (string, error) {
	var body struct {
		Raw string `json:"raw"`
	}
	if err := c.doJSON(ctx, http.MethodGet, graphPath(userID, id)+"/raw", nil, &body); err != nil {
		return "", err
	}
	return body.Raw, nil
}

// FetchParsed returns the parsed structure of a document.
func (c *Client) FetchParsed(ctx context.Context, userID, id string) (*core.ParsedStructure, error) {
	var payload json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, graphPath(userID, id)+"/parsed", nil, &payload); err != nil {
		return nil, err
	}
	return core.DecodeParsed(payload)
}

// CreateDocument registers a new document on the server.
func (c *Client) CreateDocument(ctx context.Context, userID, id, title, description string) error {
	body := map[string]string{
		"id":          id,
		"title":       title,
		"description": description,
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/users/"+url.PathEscape(userID)+"/graphs", body, nil)
}

// SaveDocument stores new CNL source for a document.
func (c *Client) SaveDocument(ctx context.Context, userID, id, raw string) error {
	body := map[string]string{"raw": raw}
	return c.doJSON(ctx, http.MethodPut, graphPath(userID, id)+"/raw", body, nil)
}

// GetDifficulty returns the user's difficulty tier.
func (c *Client) GetDifficulty(ctx context.Context, userID string) (core.Difficulty, error) {
	var body struct {
		Difficulty string `json:"difficulty"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID)+"/preferences", nil, &body); err != nil {
		return "", err
	}
	return core.ParseDifficulty(body.Difficulty)
}

// doJSON performs a request through the circuit breaker.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.do(ctx, method, path, body, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: server unavailable: %w", method, path, err)
	}
	return err
}

// do performs an HTTP request with an optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("http request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
