package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanglie/cryptofetcher/internal/metrics"
)

type mockHttpClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHttpClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func mockJSONResponse(status int, data interface{}) (*http.Response, error) {
	jsonResponse, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(jsonResponse)),
	}, nil
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/v3/", 2*time.Second)
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := New("", 10*time.Second)
		assert.Equal(t, "https://api.coingecko.com/api/v3", c.baseURL)

		hc, ok := c.client.(*http.Client)
		require.True(t, ok)
		assert.Equal(t, 10*time.Second, hc.Timeout)
		assert.Nil(t, c.metrics)
	})

	t.Run("options", func(t *testing.T) {
		m := metrics.New()
		mock := &mockHttpClient{}
		c := New("http://localhost:9999/", time.Second, WithHTTPClient(mock), WithMetrics(m))
		assert.Equal(t, "http://localhost:9999", c.baseURL)
		assert.Same(t, mock, c.client)
		assert.Same(t, m, c.metrics)
	})
}

func TestClient_URL_Markets(t *testing.T) {
	c := New("https://api.coingecko.com/api/v3/", time.Second)

	tests := []struct {
		name        string
		currency    string
		query       MarketQuery
		expectedURL string
	}{
		{
			name:        "fixed parameters",
			currency:    "inr",
			query:       MarketQuery{Page: 1, PerPage: 10},
			expectedURL: "https://api.coingecko.com/api/v3/coins/markets?locale=en&order=market_cap_desc&page=1&per_page=10&sparkline=false&vs_currency=inr",
		},
		{
			name:        "with filters",
			currency:    "cad",
			query:       MarketQuery{IDs: "bitcoin,ethereum", Category: "layer-1", Page: 2, PerPage: 250},
			expectedURL: "https://api.coingecko.com/api/v3/coins/markets?category=layer-1&ids=bitcoin%2Cethereum&locale=en&order=market_cap_desc&page=2&per_page=250&sparkline=false&vs_currency=cad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedURL, c.url(MARKETS, marketParams(tt.currency, tt.query)))
		})
	}
}

func TestClient_ListCoins(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/coins/list", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `[{"id":"01coin","symbol":"zoc","name":"01coin"},{"id":"bitcoin","symbol":"btc","name":"Bitcoin"}]`)
	})

	coins, err := c.ListCoins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CoinSummary{
		{ID: "01coin", Symbol: "zoc", Name: "01coin"},
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"},
	}, coins)
}

func TestClient_ListCategories(t *testing.T) {
	body := `[{"category_id":"aave-tokens","name":"Aave Tokens"},{"category_id":"layer-1","name":"Layer 1 (L1)","extra":[1,2]}]`
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/coins/categories/list", r.URL.Path)
		fmt.Fprint(w, body)
	})

	categories, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)

	out, err := json.Marshal(categories)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))
}

func TestClient_Ping(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v3/ping", r.URL.Path)
			fmt.Fprint(w, `{"gecko_says":"(V3) To the Moon!"}`)
		})
		assert.NoError(t, c.Ping(context.Background()))
	})

	t.Run("failure", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		assert.Error(t, c.Ping(context.Background()))
	})
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name           string
		doFunc         func(req *http.Request) (*http.Response, error)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "transport failure",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
			expectedStatus: 0,
			expectedMsg:    "do request: dial tcp: connection refused",
		},
		{
			name: "rate limited with status body",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return mockJSONResponse(http.StatusTooManyRequests, map[string]any{
					"status": map[string]any{"error_code": 429, "error_message": "You've exceeded the Rate Limit."},
				})
			},
			expectedStatus: http.StatusTooManyRequests,
			expectedMsg:    "You've exceeded the Rate Limit.",
		},
		{
			name: "not found with error body",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return mockJSONResponse(http.StatusNotFound, map[string]string{"error": "coin not found"})
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "coin not found",
		},
		{
			name: "server error without body",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusInternalServerError, Body: io.NopCloser(bytes.NewReader(nil))}, nil
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Internal Server Error",
		},
		{
			name: "malformed body",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte(`{"id":`)))}, nil
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "decode response",
		},
		{
			name: "unexpected shape",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return mockJSONResponse(http.StatusOK, map[string]string{"id": "bitcoin"})
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "decode response",
		},
		{
			name: "body read failure",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(errReader{})}, nil
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "read body: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			c := New(DefaultBaseURL, time.Second, WithHTTPClient(&mockHttpClient{doFunc: tt.doFunc}), WithMetrics(m))

			coins, err := c.ListCoins(context.Background())
			require.Error(t, err)
			assert.Nil(t, coins)

			var upstreamErr *UpstreamError
			require.True(t, errors.As(err, &upstreamErr))
			assert.Equal(t, COINS, upstreamErr.Endpoint)
			assert.Equal(t, tt.expectedStatus, upstreamErr.StatusCode)
			assert.Contains(t, upstreamErr.Message, tt.expectedMsg)
			assert.Contains(t, err.Error(), "upstream coins")

			expected := `
# HELP gateway_upstream_requests_total Total number of upstream requests by endpoint and outcome
# TYPE gateway_upstream_requests_total counter
gateway_upstream_requests_total{endpoint="coins",outcome="error"} 1
`
			assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "gateway_upstream_requests_total"))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := New(srv.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := c.ListCoins(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, 0, upstreamErr.StatusCode)
}

func TestUpstreamError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := &UpstreamError{Endpoint: MARKETS, Message: cause.Error(), Err: cause}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "upstream markets: context deadline exceeded", err.Error())

	err = &UpstreamError{Endpoint: PING, StatusCode: 503, Message: "Service Unavailable"}
	assert.Equal(t, "upstream ping error 503: Service Unavailable", err.Error())
}
