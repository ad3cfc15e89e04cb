package search

import (
	"context"
	"time"

	"jan-server/services/grant-scout/internal/domain/grant"
)

// Request describes a search_items call.
type Request struct {
	Query    string
	Category string
	UseWeb   *bool // nil means true
}

// Outcome reports how a search finished.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
	OutcomeDegraded  Outcome = "degraded"
)

// Result is the answer to a search. Searches never fail outright; a degraded
// or failed workflow still yields a (possibly empty) list.
type Result struct {
	Grants   []grant.Grant
	Outcome  Outcome
	Updated  int // stored records refreshed from web results
	Appended int // web records added without a stored match
}

// Site is a website the scraper knows how to search.
type Site struct {
	Name      string
	URL       string
	SearchURL string
	Timeout   time.Duration
}

// Sites is the set of enabled sites searched on every web-enabled query.
type Sites []Site

// GenerativeSource answers grant queries from a language model.
type GenerativeSource interface {
	SearchGrants(ctx context.Context, query, category string) ([]grant.Grant, error)
	// SearchGrantsWeb asks for currently published programmes, as a web
	// search would surface them.
	SearchGrantsWeb(ctx context.Context, query, category string) ([]grant.Grant, error)
}

// SiteScraper turns one site's pages into grant records. Implementations
// handle their own retries and fallbacks and return zero records rather than
// an error whenever a site simply has nothing to offer.
type SiteScraper interface {
	Scrape(ctx context.Context, site Site, query string) ([]grant.Grant, error)
}

// Config bounds the search workflow.
type Config struct {
	MaxConcurrent    int
	Timeout          time.Duration
	WebGatherTimeout time.Duration
	FallbackTimeout  time.Duration
	SiteParallelism  int
}
