package server

import "github.com/ivanglie/cryptofetcher/internal/coingecko"

// Health states
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"

	UpstreamConnected    = "connected"
	UpstreamDisconnected = "disconnected"
)

// HealthResponse represents /health response
type HealthResponse struct {
	AppName         string `json:"app_name"`
	Version         string `json:"version"`
	Status          string `json:"status"`
	UpstreamService string `json:"upstream_service"`
}

// CoinsResponse represents a page of the coin list
type CoinsResponse struct {
	Page       int                     `json:"page"`
	PerPage    int                     `json:"per_page"`
	TotalItems int                     `json:"total_items"`
	Data       []coingecko.CoinSummary `json:"data"`
}

// CategoriesResponse represents /api/v1/categories response
type CategoriesResponse struct {
	Data []coingecko.Category `json:"data"`
}

// MarketsResponse represents /api/v1/coins/markets response
type MarketsResponse struct {
	Data []coingecko.MarketRecord `json:"data"`
}

// ErrorResponse represents any error body. Detail is a string, or a list
// of messages for validation failures.
type ErrorResponse struct {
	Detail any `json:"detail"`
}

// PageQuery holds pagination parameters
type PageQuery struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=250"`
}

// MarketsQuery holds /api/v1/coins/markets parameters
type MarketsQuery struct {
	PageQuery
	IDs      string `form:"ids"`
	Category string `form:"category"`
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
