package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ivanglie/cryptofetcher/internal/coingecko"
	"github.com/ivanglie/cryptofetcher/pkg/log"
)

// HandleHealth handles /health requests. It always answers 200 and reports
// a degraded state when the upstream ping fails.
func (s *Server) HandleHealth(c *gin.Context) {
	status, upstream := StatusHealthy, UpstreamConnected
	if err := s.upstream.Ping(c.Request.Context()); err != nil {
		log.Warn(fmt.Sprintf("Health check: upstream unreachable: %v", err))
		status, upstream = StatusDegraded, UpstreamDisconnected
	}

	c.JSON(http.StatusOK, HealthResponse{
		AppName:         s.settings.AppName,
		Version:         s.settings.AppVersion,
		Status:          status,
		UpstreamService: upstream,
	})
}

// HandleCoins handles /api/v1/coins requests
func (s *Server) HandleCoins(c *gin.Context) {
	var q PageQuery
	if !bindQuery(c, &q) {
		return
	}

	coins, err := s.upstream.ListCoins(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CoinsResponse{
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalItems: len(coins),
		Data:       paginate(coins, q.Page, q.PerPage),
	})
}

// HandleCategories handles /api/v1/categories requests
func (s *Server) HandleCategories(c *gin.Context) {
	categories, err := s.upstream.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CategoriesResponse{Data: nonNil(categories)})
}

// HandleMarkets handles /api/v1/coins/markets requests
func (s *Server) HandleMarkets(c *gin.Context) {
	var q MarketsQuery
	if !bindQuery(c, &q) {
		return
	}

	records, err := s.upstream.FetchMarkets(c.Request.Context(), coingecko.MarketQuery{
		Currencies: s.settings.Currencies(),
		IDs:        q.IDs,
		Category:   q.Category,
		Page:       q.Page,
		PerPage:    q.PerPage,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, MarketsResponse{Data: nonNil(records)})
}

// paginate returns the page-th slice of perPage items. page and perPage
// are >= 1.
func paginate[T any](items []T, page, perPage int) []T {
	if page-1 > len(items)/perPage {
		return []T{}
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// writeError maps upstream failures to 503 and anything else to 500
func writeError(c *gin.Context, err error) {
	var upstreamErr *coingecko.UpstreamError
	if errors.As(err, &upstreamErr) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: upstreamErr.Error()})
		return
	}

	log.Error(fmt.Sprintf("Unexpected error serving %s: %v", c.Request.URL.Path, err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "Internal Server Error"})
}

// bindQuery binds and validates query parameters, answering 422 on failure
func bindQuery(c *gin.Context, obj any) bool {
	err := c.ShouldBindQuery(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, describe(fe))
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: details})
		return false
	}

	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: []string{err.Error()}})
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

var validationOnce sync.Once

// registerValidation makes validation errors report query parameter names
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}
