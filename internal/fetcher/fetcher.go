// Package fetcher retrieves the records list from a running records API.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"cashflow/internal/core"
	"cashflow/internal/records"
)

// RecordsPath is the fixed endpoint serving the records list.
const RecordsPath = "/api/records"

const (
	defaultMaxBodyBytes = 32 << 20
	snippetBytes        = 200
)

var _ records.Reader = (*Client)(nil)

// StatusError reports a non-2xx response from the records endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("records endpoint returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("records endpoint returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

var (
	// ErrParse wraps payloads that could not be decoded.
	ErrParse = errors.New("parse records response")

	// ErrTooLarge is returned when the body exceeds the configured limit.
	ErrTooLarge = errors.New("records response too large")
)

type Client struct {
	endpoint     string
	httpClient   *http.Client
	maxBodyBytes int64
}

type Option func(*Client)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxBodyBytes caps the response body size. Non-positive values keep the
// default of 32 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// New builds a client for the records API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + RecordsPath
	u.RawQuery = ""

	c := &Client{endpoint: u.String(), httpClient: http.DefaultClient, maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// ReadRecords performs exactly one GET. There is no retry; deadlines come
// from ctx.
func (c *Client) ReadRecords(ctx context.Context) (records.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return records.Payload{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return records.Payload{}, fmt.Errorf("fetch records: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return records.Payload{}, fmt.Errorf("read records response: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return records.Payload{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return records.Payload{}, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}

	p, err := records.Decode(body)
	if err != nil {
		return records.Payload{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return p, nil
}

// FetchRecords is ReadRecords unpacked into the decoded records and the raw
// response body.
func (c *Client) FetchRecords(ctx context.Context) ([]core.Record, []byte, error) {
	p, err := c.ReadRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p.Records, p.Raw, nil
}

// snippet shortens body for error messages without splitting a rune.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= snippetBytes {
		return s
	}
	cut := snippetBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
