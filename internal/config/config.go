package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds process-wide configuration. It is built once at startup
// and passed explicitly to the components that need it.
type Settings struct {
	AppName          string `mapstructure:"APP_NAME"`
	AppVersion       string `mapstructure:"APP_VERSION"`
	APIToken         string `mapstructure:"API_TOKEN"`
	ExternalTimeout  int    `mapstructure:"EXTERNAL_TIMEOUT"`
	UpstreamBaseURL  string `mapstructure:"COINGECKO_BASE_URL"`
	MarketCurrencies string `mapstructure:"MARKET_CURRENCIES"`
	ListenAddr       string `mapstructure:"LISTEN_ADDR"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	LogPretty        bool   `mapstructure:"LOG_PRETTY"`
	AllowedOrigins   string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

func defaults() map[string]any {
	return map[string]any{
		"APP_NAME":             "CryptoFetcher",
		"APP_VERSION":          "1.0",
		"API_TOKEN":            "secret-token",
		"EXTERNAL_TIMEOUT":     10,
		"COINGECKO_BASE_URL":   "https://api.coingecko.com/api/v3/",
		"MARKET_CURRENCIES":    "inr,cad",
		"LISTEN_ADDR":          ":8000",
		"LOG_LEVEL":            "info",
		"LOG_PRETTY":           false,
		"CORS_ALLOWED_ORIGINS": "*",
	}
}

// Default returns settings populated with default values only.
func Default() *Settings {
	s, err := load(viper.New())
	if err != nil {
		panic(err)
	}
	return s
}

// Load reads settings from the environment. When envFile is not empty and
// exists, its variables are loaded first without overriding the environment.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	s, err := load(v)
	if err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return s, nil
}

func load(v *viper.Viper) (*Settings, error) {
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &s, nil
}

// Timeout returns the upstream call timeout.
func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.ExternalTimeout) * time.Second
}

// Currencies returns the ordered list of quote currencies. The first one
// seeds the market merge.
func (s *Settings) Currencies() []string {
	return splitList(strings.ToLower(s.MarketCurrencies))
}

// Origins returns the allowed CORS origins.
func (s *Settings) Origins() []string {
	return splitList(s.AllowedOrigins)
}

// Validate checks that all required fields are set and values are valid.
func (s *Settings) Validate() error {
	if s.APIToken == "" {
		return errors.New("API_TOKEN is required")
	}

	if s.ExternalTimeout < 1 {
		return fmt.Errorf("EXTERNAL_TIMEOUT must be >= 1, got %d", s.ExternalTimeout)
	}

	u, err := url.Parse(s.UpstreamBaseURL)
	if err != nil {
		return fmt.Errorf("COINGECKO_BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("COINGECKO_BASE_URL must be an http(s) url, got %q", s.UpstreamBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("COINGECKO_BASE_URL has no host: %q", s.UpstreamBaseURL)
	}

	currencies := s.Currencies()
	if len(currencies) == 0 {
		return errors.New("MARKET_CURRENCIES must name at least one currency")
	}
	seen := make(map[string]bool, len(currencies))
	for _, c := range currencies {
		if !isCurrencyCode(c) {
			return fmt.Errorf("MARKET_CURRENCIES: invalid currency code %q", c)
		}
		if seen[c] {
			return fmt.Errorf("MARKET_CURRENCIES: duplicate currency code %q", c)
		}
		seen[c] = true
	}

	if s.ListenAddr == "" {
		return errors.New("LISTEN_ADDR is required")
	}

	for _, o := range s.Origins() {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: invalid origin %q", o)
		}
	}

	return nil
}

func isCurrencyCode(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
