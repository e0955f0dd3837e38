package coingecko

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Endpoint represents an upstream API path
type Endpoint int

// Upstream endpoints
const (
	PING Endpoint = iota
	COINS
	CATEGORIES
	MARKETS
)

func (e Endpoint) String() string {
	return [...]string{"ping", "coins", "categories", "markets"}[e]
}

// Path returns the endpoint path relative to the base URL
func (e Endpoint) Path() string {
	return [...]string{"/ping", "/coins/list", "/coins/categories/list", "/coins/markets"}[e]
}

// CoinSummary represents an entry of the coins list
type CoinSummary struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Category is an upstream category record passed through unmodified
type Category = json.RawMessage

// Amount is a decimal value that may be absent upstream.
// It marshals to a bare JSON number, or null when absent.
type Amount struct {
	decimal.NullDecimal
}

// NewAmount returns a present amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{decimal.NewNullDecimal(d)}
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		a.Valid = false
		return nil
	}
	return a.NullDecimal.UnmarshalJSON(b)
}

// MarketCoin represents one entry of the /coins/markets response
type MarketCoin struct {
	ID           string `json:"id"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	CurrentPrice Amount `json:"current_price"`
	MarketCap    Amount `json:"market_cap"`
	High24h      Amount `json:"high_24h"`
	Low24h       Amount `json:"low_24h"`
}

// CurrencyData represents price figures of a coin in one quote currency
type CurrencyData struct {
	CurrentPrice Amount `json:"current_price"`
	MarketCap    Amount `json:"market_cap"`
	High24h      Amount `json:"high_24h"`
	Low24h       Amount `json:"low_24h"`
}

// MarketRecord represents a coin with market data for every quote currency
// it was found in
type MarketRecord struct {
	ID         string                  `json:"id"`
	Symbol     string                  `json:"symbol"`
	Name       string                  `json:"name"`
	Image      string                  `json:"image"`
	MarketData map[string]CurrencyData `json:"market_data"`
}

// MarketQuery holds the parameters of a markets request
type MarketQuery struct {
	Currencies []string
	IDs        string
	Category   string
	Page       int
	PerPage    int
}

// ErrorResponse represents an upstream error body. The API reports errors
// either as {"error": "..."} or {"status": {"error_code": n, "error_message": "..."}}.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

// Message returns the most specific message found in the body
func (r ErrorResponse) Message() string {
	if r.Status.ErrorMessage != "" {
		return r.Status.ErrorMessage
	}
	return r.Error
}

func currencyData(c MarketCoin) CurrencyData {
	return CurrencyData{
		CurrentPrice: c.CurrentPrice,
		MarketCap:    c.MarketCap,
		High24h:      c.High24h,
		Low24h:       c.Low24h,
	}
}
