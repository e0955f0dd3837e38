// Package coingecko is the client for the upstream market-data API.
package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ivanglie/cryptofetcher/internal/metrics"
	"github.com/ivanglie/cryptofetcher/pkg/log"
)

// DefaultBaseURL is the public API root
const DefaultBaseURL = "https://api.coingecko.com/api/v3/"

// HTTPClient is the subset of *http.Client used by Client
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs outbound calls to the upstream API. It never retries
// and never caches.
type Client struct {
	baseURL string
	client  HTTPClient
	metrics *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom transport
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithMetrics records every upstream call on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client. timeout bounds every upstream call.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Ping checks that the upstream API answers
func (c *Client) Ping(ctx context.Context) error {
	var out json.RawMessage
	return c.get(ctx, PING, nil, &out)
}

// ListCoins returns every coin known upstream
func (c *Client) ListCoins(ctx context.Context) ([]CoinSummary, error) {
	var coins []CoinSummary
	if err := c.get(ctx, COINS, nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// ListCategories returns the upstream category list as is
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.get(ctx, CATEGORIES, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func marketParams(currency string, q MarketQuery) url.Values {
	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(q.PerPage))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("sparkline", "false")
	params.Set("locale", "en")
	if q.IDs != "" {
		params.Set("ids", q.IDs)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	return params
}

func (c *Client) url(e Endpoint, params url.Values) string {
	u := c.baseURL + e.Path()
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, e Endpoint, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		observed := err
		// the caller gave up on the call, whatever the transport reported
		if err != nil && errors.Is(ctx.Err(), context.Canceled) {
			observed = context.Canceled
		}
		c.metrics.ObserveUpstream(e.String(), observed, time.Since(start))
		switch {
		case observed == nil:
		case errors.Is(observed, context.Canceled):
			log.Debug(err.Error())
		default:
			log.Error(err.Error())
		}
	}()

	u := c.url(e, params)
	log.Debug(fmt.Sprintf("Requesting %s: %s", e, u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &UpstreamError{Endpoint: e, Message: fmt.Sprintf("create request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &UpstreamError{Endpoint: e, Message: fmt.Sprintf("do request: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Endpoint: e, StatusCode: resp.StatusCode, Message: fmt.Sprintf("read body: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message() != "" {
			msg = errResp.Message()
		}
		return &UpstreamError{Endpoint: e, StatusCode: resp.StatusCode, Message: msg}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(out); err != nil {
		return &UpstreamError{Endpoint: e, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}

	return nil
}
