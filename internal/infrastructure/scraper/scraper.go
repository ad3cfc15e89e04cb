package scraper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"jan-server/services/grant-scout/internal/domain/grant"
	"jan-server/services/grant-scout/internal/domain/search"
	"jan-server/services/grant-scout/internal/infrastructure/metrics"
)

// Extractor turns scraped pages into grant records.
type Extractor interface {
	ExtractGrants(ctx context.Context, site string, query string, pages []Page) ([]grant.Grant, error)
}

// Config configures the site scraper.
type Config struct {
	Command        []string
	CacheDir       string
	KillDelay      time.Duration
	DefaultTimeout time.Duration
	MaxPages       int
	MaxChars       int
	UserAgent      string
	CacheSize      int
	CacheTTL       time.Duration
}

// Scraper implements search.SiteScraper. Pages come from the external
// scraper process when one is configured and from the in-process crawler
// otherwise or when the process yields nothing.
type Scraper struct {
	runner    *ProcessRunner
	crawler   *Crawler
	cache     *PageCache
	extractor Extractor
	timeout   time.Duration
}

var _ search.SiteScraper = (*Scraper)(nil)

// New creates a site scraper.
func New(cfg Config, extractor Extractor) (*Scraper, error) {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 40 * time.Second
	}
	cache, err := NewPageCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		runner:    NewProcessRunner(cfg.Command, cfg.CacheDir, cfg.KillDelay, cfg.MaxChars),
		crawler:   NewCrawler(cfg.UserAgent, cfg.DefaultTimeout/2, cfg.MaxPages, cfg.MaxChars),
		cache:     cache,
		extractor: extractor,
		timeout:   cfg.DefaultTimeout,
	}, nil
}

// Scrape collects pages for query from site and extracts records from them.
// A site with no matching pages yields no records and no error.
func (s *Scraper) Scrape(ctx context.Context, site search.Site, query string) ([]grant.Grant, error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.RecordSourceLatency(SourceLabel(site.Name), status, time.Since(start).Seconds())
	}()

	pages, cached := s.cache.Get(site.Name, query)
	if !cached {
		var err error
		pages, err = s.collect(ctx, site, query)
		if err != nil {
			status = "error"
			return nil, err
		}
		s.cache.Set(site.Name, query, pages)
	}
	if len(pages) == 0 {
		status = "empty"
		return nil, nil
	}

	grants, err := s.extractor.ExtractGrants(ctx, site.Name, query, pages)
	if err != nil {
		status = "error"
		return nil, err
	}

	log.Debug().
		Str("site", site.Name).
		Bool("cached", cached).
		Int("pages", len(pages)).
		Int("records", len(grants)).
		Msg("site scraped")
	return grants, nil
}

func (s *Scraper) collect(ctx context.Context, site search.Site, query string) ([]Page, error) {
	timeout := site.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	siteCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.runner != nil {
		pages, err := s.runner.Run(siteCtx, site, query)
		if err == nil && len(pages) > 0 {
			return pages, nil
		}
		if ctxErr := siteCtx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return nil, err
		}
		log.Info().
			Err(err).
			Str("site", site.Name).
			Msg("scraper process produced no pages, crawling in-process")
	}
	return s.crawler.Crawl(siteCtx, site, query)
}
