// Package client talks to the document backend. Streaming endpoints are
// returned as stream readers bound to the request context; everything else
// is a plain JSON round trip.
package client

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

	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/stream"
	"github.com/docweave/weave/pkg/utils"
)

const (
	// DefaultBaseURL is the address of a locally running backend.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout bounds non-streaming calls.
	DefaultTimeout = 2 * time.Minute
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int

	// Message is the backend's {"error": ...} text, when it sent one.
	Message string
	Body    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = utils.Truncate(strings.TrimSpace(e.Body), 200)
	}
	if msg == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, msg)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tee        io.Writer
	restricted bool
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its Timeout must be zero or longer
// than the longest expected stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTee copies the raw bytes of every streamed response to w.
func WithTee(w io.Writer) Option {
	return func(c *Client) {
		c.tee = w
	}
}

// WithRestricted sets the is_restricted flag sent with index operations.
func WithRestricted(restricted bool) Option {
	return func(c *Client) {
		c.restricted = restricted
	}
}

// WithTimeout bounds non-streaming calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL must be http or https: %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger.Nop(),
		restricted: true,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Restricted returns the is_restricted flag sent with index operations.
func (c *Client) Restricted() bool {
	return c.restricted
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) restrictedQuery() url.Values {
	return url.Values{"is_restricted": {fmt.Sprintf("%t", c.restricted)}}
}

// do sends req and returns the response when its status is 2xx. Any other
// status is turned into a StatusError and the body is closed.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s %s: %w", req.Method, req.URL.Path, err)
	}

	c.logger.Debug("backend response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	se := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(body, &payload) == nil {
		se.Message = payload.Error
		if payload.Details != "" {
			se.Message = fmt.Sprintf("%s: %s", payload.Error, payload.Details)
		}
	}
	return nil, se
}

func (c *Client) newJSONRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// roundTrip performs a bounded JSON call and decodes the response into out
// when out is non-nil.
func (c *Client) roundTrip(ctx context.Context, method, target string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newJSONRequest(ctx, method, target, body)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

// openStream sends req and wraps the response body in a stream reader. The
// request context governs the whole stream: cancelling it closes the body.
func openStream[T any](c *Client, req *http.Request, framing stream.Framing, decode stream.DecodeFunc[T]) (*stream.Reader[T], error) {
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson, application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	opts := []stream.Option{stream.WithLogger(c.logger)}
	if c.tee != nil {
		opts = append(opts, stream.WithTee(c.tee))
	}
	return stream.NewReader(resp.Body, framing, decode, opts...), nil
}
