// Package api is the single gateway to the vault backend. Every request goes
// through Client.do, which attaches the persisted bearer token and reports
// authentication failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultVerifyPath is the token verification endpoint
const DefaultVerifyPath = "/api/users/verify-token"

// TokenSource provides the bearer token for outgoing requests.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client represents an HTTP client for the vault API
type Client struct {
	baseURL    string
	verifyPath string
	tokens     TokenSource
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the transport default timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithVerifyPath overrides the token verification endpoint
func WithVerifyPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.verifyPath = path
		}
	}
}

// WithLogger sets the logger used for request and auth failure logging
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = log.With().Str("component", "api").Logger()
	}
}

// New creates a new API client. baseURL must already be resolved
// (see config.ResolveBaseURL).
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		verifyPath: DefaultVerifyPath,
		tokens:     tokens,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API origin requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one outgoing call
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
}

// jsonRequest builds a request with a JSON-encoded body (nil body sends none)
func jsonRequest(method, path string, body any) (request, error) {
	req := request{method: method, path: path}
	if body == nil {
		return req, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return req, fmt.Errorf("failed to marshal request: %w", err)
	}
	req.body = bytes.NewReader(data)
	req.contentType = "application/json"
	return req, nil
}

// do sends r and returns the response on 2xx. Any other status is converted
// into an *APIError and the body is closed. The caller closes the body on success.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	// Token is read on every request so login/logout take effect immediately
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", r.method).Str("path", r.path).Msg("Request failed")
		return nil, &TransportError{Op: r.method + " " + r.path, Err: err}
	}

	c.logger.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := newAPIError(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		// Token expired or invalid. The caller decides whether to log out.
		c.logger.Warn().Str("path", r.path).Msg("Authentication error - token may be expired")
	}

	return nil, apiErr
}

// doJSON sends r and decodes a JSON response into out (nil discards the body)
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrMalformedResponse, err)
	}
	return nil
}

// call is the common JSON round trip used by most endpoints
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	req, err := jsonRequest(method, path, body)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, req, out)
}
