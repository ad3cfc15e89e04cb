package infrastructure

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/search"
	"jan-server/services/grant-scout/internal/domain/summary"
	"jan-server/services/grant-scout/internal/infrastructure/auth"
	"jan-server/services/grant-scout/internal/infrastructure/config"
	"jan-server/services/grant-scout/internal/infrastructure/grantstore"
	"jan-server/services/grant-scout/internal/infrastructure/llm"
	"jan-server/services/grant-scout/internal/infrastructure/resilience"
	"jan-server/services/grant-scout/internal/infrastructure/scraper"
)

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,
	ProvideSearchConfig,

	// Record store
	ProvideGrantStore,
	wire.Bind(new(grant.Repository), new(*grantstore.Store)),

	// Generative source
	ProvideLLMClient,
	wire.Bind(new(search.GenerativeSource), new(*llm.Client)),
	wire.Bind(new(summary.Summarizer), new(*llm.Client)),
	wire.Bind(new(scraper.Extractor), new(*llm.Client)),

	// Site scraping
	ProvideSites,
	ProvideScraper,
	wire.Bind(new(search.SiteScraper), new(*scraper.Scraper)),

	// Auth validator
	ProvideAuthValidator,
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideSearchConfig maps configuration onto the search workflow bounds
func ProvideSearchConfig(cfg *config.Config) search.Config {
	return search.Config{
		MaxConcurrent:    cfg.MaxConcurrentSearches,
		Timeout:          cfg.SearchTimeout,
		WebGatherTimeout: cfg.WebGatherTimeout,
		FallbackTimeout:  cfg.FallbackTimeout,
		SiteParallelism:  cfg.SiteParallelism,
	}
}

// ProvideGrantStore opens the file-per-record store
func ProvideGrantStore(cfg *config.Config) (*grantstore.Store, error) {
	return grantstore.New(cfg.StoreDir)
}

// ProvideLLMClient provides the OpenAI-compatible generative source
func ProvideLLMClient(cfg *config.Config) *llm.Client {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.LLMRetryMaxAttempts
	retry.InitialDelay = cfg.LLMRetryInitialDelay
	retry.MaxDelay = cfg.LLMRetryMaxDelay
	retry.BackoffFactor = cfg.LLMRetryBackoffFactor

	return llm.NewClient(llm.ClientConfig{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Timeout:     cfg.LLMTimeout,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Retry:       retry,
		Breaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.LLMCBFailureThreshold > 0,
			FailureThreshold: cfg.LLMCBFailureThreshold,
			SuccessThreshold: cfg.LLMCBSuccessThreshold,
			Timeout:          cfg.LLMCBTimeout,
			MaxHalfOpenCalls: cfg.LLMCBMaxHalfOpen,
		},
	})
}

// ProvideSites loads the enabled websites to scrape
func ProvideSites(cfg *config.Config) (search.Sites, error) {
	sitesConfig, err := scraper.LoadSitesConfig(cfg.SitesConfigPath)
	if err != nil {
		return nil, err
	}
	sites := sitesConfig.EnabledSites(cfg.ScraperSiteTimeout)
	names := make([]string, 0, len(sites))
	for _, site := range sites {
		names = append(names, site.Name)
	}
	log.Info().
		Str("path", cfg.SitesConfigPath).
		Strs("sites", names).
		Msg("loaded scrape sites")
	return sites, nil
}

// ProvideScraper provides the site scraper
func ProvideScraper(cfg *config.Config, extractor scraper.Extractor) (*scraper.Scraper, error) {
	return scraper.New(scraper.Config{
		Command:        cfg.ScraperCommand,
		CacheDir:       cfg.ScraperCacheDir,
		KillDelay:      cfg.ScraperKillDelay,
		DefaultTimeout: cfg.ScraperSiteTimeout,
		MaxPages:       cfg.ScraperMaxPages,
		MaxChars:       cfg.ScraperMaxChars,
		UserAgent:      cfg.ScraperUserAgent,
		CacheSize:      cfg.PageCacheSize,
		CacheTTL:       cfg.PageCacheTTL,
	}, extractor)
}

// ProvideAuthValidator provides the auth validator
func ProvideAuthValidator(ctx context.Context, cfg *config.Config) (*auth.Validator, error) {
	logger := log.Logger
	return auth.NewValidator(ctx, cfg, logger)
}

