// Package cloudinary is a thin client for the Cloudinary upload and search
// APIs. Responses are returned as raw JSON so callers can pass them through
// unmodified.
package cloudinary

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	opUpload = "upload"
	opSearch = "search"

	maxResponseSize = 10 * 1024 * 1024
)

// Client talks to one Cloudinary account. It holds no state besides its
// configuration and is safe for concurrent use.
type Client struct {
	cfg      Config
	http     *http.Client
	observer Observer
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver records remote call telemetry.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock overrides the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient validates cfg and returns a client for it.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CloudName returns the configured account name.
func (c *Client) CloudName() string {
	return c.cfg.CloudName
}

func (c *Client) endpoint(path string) string {
	return c.cfg.baseURL() + "/v1_1/" + c.cfg.CloudName + path
}

func (c *Client) timestamp() string {
	return strconv.FormatInt(c.now().Unix(), 10)
}

// do sends req and returns the raw body of a successful response.
func (c *Client) do(op string, req *http.Request) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.roundTrip(op, req)
	c.observer.RecordCall(op, time.Since(start), err)
	return body, err
}

func (c *Client) roundTrip(op string, req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("cloudinary %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(op, resp.StatusCode, body)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("cloudinary %s: response is not valid JSON", op)
	}
	return json.RawMessage(body), nil
}
