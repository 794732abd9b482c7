// Package frankfurter implements ports.RateService against a
// Frankfurter-style exchange rate API (GET /latest?from=USD&to=EUR).
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

const (
	defaultBaseURL = "https://api.frankfurter.app"
	defaultTimeout = 5 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-lookup timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client looks up live exchange rates.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var _ ports.RateService = (*Client)(nil)

// NewClient creates a rate client. Outgoing requests are traced with
// otelhttp unless a custom HTTP client is supplied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

type latestResponse struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// GetRate implements ports.RateService. Every failure, including non-2xx
// answers and malformed bodies, is reported as rate_unavailable.
func (c *Client) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	endpoint := c.baseURL + "/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, unavailable(from, to, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, unavailable(from, to, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, unavailable(from, to,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var out latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, unavailable(from, to, "failed to decode response", err)
	}

	rate, ok := out.Rates[to]
	if !ok {
		return decimal.Zero, unavailable(from, to, "response has no rate for "+to, nil)
	}
	// Rates are quoted for Amount units of the base currency.
	if out.Amount.IsPositive() && !out.Amount.Equal(decimal.NewFromInt(1)) {
		rate = rate.DivRound(out.Amount, 16)
	}
	if !rate.IsPositive() {
		return decimal.Zero, unavailable(from, to, "non-positive rate "+rate.String(), nil)
	}
	return rate, nil
}

func unavailable(from, to, msg string, cause error) error {
	err := domain.ErrRateUnavailable(fmt.Sprintf("%s/%s: %s", from, to, msg))
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
