// Package apiclient is a REST client for the CareLink API. It runs the same
// payment and attendance rules as the server before sending a request, so
// invalid operations fail without a round trip.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jisazamp/carelink/internal/domain/attendance"
	"github.com/jisazamp/carelink/internal/domain/billing"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the attempt count and first delay used by retried reads.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = base
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "apiclient").Logger() }
}

// WithGate replaces the attendance gate used for local checks.
func WithGate(g *attendance.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithCatalog sets the payment type catalog used for local validation.
func WithCatalog(cat *billing.PaymentTypeCatalog) Option {
	return func(c *Client) { c.catalog = cat }
}

type Client struct {
	baseURL   string
	tokens    TokenSource
	http      *http.Client
	attempts  int
	baseDelay time.Duration
	gate      *attendance.Gate
	logger    zerolog.Logger

	mu      sync.RWMutex
	catalog *billing.PaymentTypeCatalog
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		http:      &http.Client{Timeout: 15 * time.Second},
		attempts:  3,
		baseDelay: 200 * time.Millisecond,
		gate:      attendance.NewGate(nil),
		logger:    zerolog.Nop(),
		catalog:   billing.DefaultPaymentTypeCatalog(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body interface{}) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// send performs one request. A nil out discards the body.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Message interface{} `json:"message"`
		Errors  []string    `json:"errors"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if s, ok := body.Message.(string); ok {
			apiErr.Message = s
		}
		apiErr.Errors = body.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// retrying wraps send with exponential backoff. Only network failures and
// 5xx responses are retried.
func (c *Client) retrying(ctx context.Context, path string, q url.Values, out interface{}) error {
	delay := c.baseDelay
	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err = c.send(ctx, http.MethodGet, path, q, nil, out)
		if err == nil || !retryable(err) || attempt == c.attempts {
			return err
		}
		c.logger.Debug().Err(err).Str("path", path).Int("attempt", attempt).Dur("delay", delay).Msg("retrying request")
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}
