// Package api provides a client for the music catalog REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the catalog backend used when none is configured.
const DefaultBaseURL = "http://localhost:9188/api"

const maxBodySize = 8 << 20

var (
	// ErrUnauthorized is returned when the backend rejects credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// HTTPError represents a non-2xx response from the backend.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Response is a decoded backend response.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the response carries a JSON body.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

// Text returns the body as text.
func (r *Response) Text() string {
	return strings.TrimSpace(string(r.Body))
}

// Decode unmarshals a JSON body into dst.
func (r *Response) Decode(dst any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// Config represents REST client configuration.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64 // 0 disables throttling
	Burst      int
	HTTPClient *http.Client
}

// Client is a catalog backend client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", base)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c, nil
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request sends a request to endpoint (relative to the base URL) and returns the
// response. Body is JSON-encoded when non-nil. Non-2xx responses become *HTTPError,
// carrying the JSON "message" field when present and the text body otherwise.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter wait failed")
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	r := &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{Status: resp.StatusCode, Message: errorMessage(r)}
		zlog.Debug().Msgf("api: %s %s failed: %d %s", method, endpoint, herr.Status, herr.Message)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return r, errors.Mark(herr, ErrUnauthorized)
		case http.StatusNotFound:
			return r, errors.Mark(herr, ErrNotFound)
		}
		return r, herr
	}
	return r, nil
}

func errorMessage(r *Response) string {
	if r.IsJSON() {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(r.Body, &body); err == nil && body.Message != "" {
			return body.Message
		}
	} else if text := r.Text(); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP error! status: %d", r.Status)
}

// getJSON issues a GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	resp, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return resp.Decode(dst)
}

// send issues a mutating request and decodes a JSON response into dst when both are present.
func (c *Client) send(ctx context.Context, method, endpoint string, body, dst any) error {
	resp, err := c.Request(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if dst != nil && resp.IsJSON() && len(resp.Body) > 0 {
		return resp.Decode(dst)
	}
	return nil
}

// HTTPStatus returns the backend status carried by err, or 0.
func HTTPStatus(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Status
	}
	return 0
}
