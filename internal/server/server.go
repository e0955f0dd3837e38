package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ivanglie/cryptofetcher/internal/auth"
	"github.com/ivanglie/cryptofetcher/internal/coingecko"
	"github.com/ivanglie/cryptofetcher/internal/config"
	"github.com/ivanglie/cryptofetcher/internal/metrics"
)

// Upstream is the market-data client used by the handlers
type Upstream interface {
	Ping(ctx context.Context) error
	ListCoins(ctx context.Context) ([]coingecko.CoinSummary, error)
	ListCategories(ctx context.Context) ([]coingecko.Category, error)
	FetchMarkets(ctx context.Context, q coingecko.MarketQuery) ([]coingecko.MarketRecord, error)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Server handles HTTP requests and delegates to the upstream client
type Server struct {
	settings *config.Settings
	upstream Upstream
	gate     *auth.Gate
	metrics  *metrics.Metrics
	router   *gin.Engine
	listener httpServer
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records request metrics and exposes them on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new server instance with its routes registered
func New(settings *config.Settings, upstream Upstream, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		upstream: upstream,
		gate:     auth.NewGate(settings.APIToken),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.Routes()
	s.listener = &http.Server{
		Addr:              settings.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Routes registers all routes on a fresh router
func (s *Server) Routes() {
	registerValidation()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(requestID(), s.observe(), recovery(), corsMiddleware(s.settings.Origins()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Not Found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Detail: "Method Not Allowed"})
	})

	r.GET("/health", s.HandleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/api/v1", s.gate.Middleware())
	v1.GET("/coins", s.HandleCoins)
	v1.GET("/coins/markets", s.HandleMarkets)
	v1.GET("/categories", s.HandleCategories)

	s.router = r
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the server is shut down
func (s *Server) Start() error {
	err := s.listener.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.listener.Shutdown(ctx)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		AllowWildcard: true,
		MaxAge:        12 * time.Hour,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	if !cfg.AllowAllOrigins && len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}

	return cors.New(cfg)
}
