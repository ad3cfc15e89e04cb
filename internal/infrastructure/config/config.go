package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Config holds all configuration for the grant scout service
type Config struct {
	// HTTP Server - using GRANT_ prefix to avoid collisions
	HTTPPort  string `env:"GRANT_HTTP_PORT" envDefault:"8093"`
	Transport string `env:"GRANT_TRANSPORT" envDefault:"http"` // http or stdio
	LogLevel  string `env:"GRANT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GRANT_LOG_FORMAT" envDefault:"json"` // json or console

	// Record store
	StoreDir string `env:"GRANT_STORE_DIR" envDefault:"./data/grants"`

	// Search orchestration
	MaxConcurrentSearches int           `env:"GRANT_MAX_CONCURRENT_SEARCHES" envDefault:"3"`
	SearchTimeout         time.Duration `env:"GRANT_SEARCH_TIMEOUT" envDefault:"60s"`
	WebGatherTimeout      time.Duration `env:"GRANT_WEB_GATHER_TIMEOUT" envDefault:"45s"`
	FallbackTimeout       time.Duration `env:"GRANT_FALLBACK_TIMEOUT" envDefault:"30s"`
	SiteParallelism       int           `env:"GRANT_SITE_PARALLELISM" envDefault:"4"`

	// Generative source (any OpenAI-compatible endpoint, llm-api included)
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"http://llm-api:8080/v1"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"40s"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.2"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"4096"`

	// Circuit Breaker Configuration
	LLMCBFailureThreshold int           `env:"LLM_CB_FAILURE_THRESHOLD" envDefault:"5"`
	LLMCBSuccessThreshold int           `env:"LLM_CB_SUCCESS_THRESHOLD" envDefault:"2"`
	LLMCBTimeout          time.Duration `env:"LLM_CB_TIMEOUT" envDefault:"45s"`
	LLMCBMaxHalfOpen      int           `env:"LLM_CB_MAX_HALF_OPEN" envDefault:"2"`

	// Retry Configuration
	LLMRetryMaxAttempts   int           `env:"LLM_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	LLMRetryInitialDelay  time.Duration `env:"LLM_RETRY_INITIAL_DELAY" envDefault:"500ms"`
	LLMRetryMaxDelay      time.Duration `env:"LLM_RETRY_MAX_DELAY" envDefault:"5s"`
	LLMRetryBackoffFactor float64       `env:"LLM_RETRY_BACKOFF_FACTOR" envDefault:"1.5"`

	// Site scraping
	SitesConfigPath    string        `env:"GRANT_SITES_CONFIG" envDefault:"configs/sites.yml"`
	ScraperCommand     []string      `env:"GRANT_SCRAPER_COMMAND" envSeparator:" "`
	ScraperCacheDir    string        `env:"GRANT_SCRAPER_CACHE_DIR" envDefault:"./data/scraper-cache"`
	ScraperSiteTimeout time.Duration `env:"GRANT_SCRAPER_SITE_TIMEOUT" envDefault:"40s"`
	ScraperKillDelay   time.Duration `env:"GRANT_SCRAPER_KILL_DELAY" envDefault:"3s"`
	ScraperMaxPages    int           `env:"GRANT_SCRAPER_MAX_PAGES" envDefault:"5"`
	ScraperMaxChars    int           `env:"GRANT_SCRAPER_MAX_CHARS" envDefault:"12000"`
	ScraperUserAgent   string        `env:"GRANT_SCRAPER_USER_AGENT" envDefault:"Mozilla/5.0 (compatible; GrantScout/1.0)"`
	PageCacheSize      int           `env:"GRANT_PAGE_CACHE_SIZE" envDefault:"256"`
	PageCacheTTL       time.Duration `env:"GRANT_PAGE_CACHE_TTL" envDefault:"30m"`

	// Authentication
	AuthEnabled bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer  string `env:"AUTH_ISSUER"`
	Account     string `env:"ACCOUNT"`
	AuthJWKSURL string `env:"AUTH_JWKS_URL"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(os.Getenv("GRANT_LOG_LEVEL")) == "" {
		if global := strings.TrimSpace(os.Getenv("LOG_LEVEL")); global != "" {
			cfg.LogLevel = global
		}
	}
	if strings.TrimSpace(os.Getenv("GRANT_LOG_FORMAT")) == "" {
		if global := strings.TrimSpace(os.Getenv("LOG_FORMAT")); global != "" {
			cfg.LogFormat = global
		}
	}

	switch cfg.Transport {
	case TransportHTTP, TransportStdio:
	default:
		return nil, fmt.Errorf("GRANT_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportStdio, cfg.Transport)
	}
	if cfg.MaxConcurrentSearches < 1 {
		return nil, fmt.Errorf("GRANT_MAX_CONCURRENT_SEARCHES must be at least 1")
	}
	if cfg.WebGatherTimeout >= cfg.SearchTimeout {
		return nil, fmt.Errorf("GRANT_WEB_GATHER_TIMEOUT (%s) must be shorter than GRANT_SEARCH_TIMEOUT (%s)", cfg.WebGatherTimeout, cfg.SearchTimeout)
	}
	if cfg.SiteParallelism < 1 {
		cfg.SiteParallelism = 1
	}

	if cfg.AuthEnabled {
		if strings.TrimSpace(cfg.AuthIssuer) == "" {
			return nil, fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.Account) == "" {
			return nil, fmt.Errorf("ACCOUNT is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
			return nil, fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return cfg, nil
}
