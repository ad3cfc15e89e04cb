package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"jan-server/services/grant-scout/internal/domain/grant"
)

const updatedSourceSuffix = " (updated)"

// SearchService runs the search workflow: admission, a generative branch and a
// web branch raced against one deadline, then a merge of web results into the
// record store.
type SearchService struct {
	generative GenerativeSource
	scraper    SiteScraper
	repo       grant.Repository
	sites      Sites
	gate       *AdmissionGate
	cfg        Config
}

// NewSearchService creates a new search service.
func NewSearchService(cfg Config, generative GenerativeSource, scraper SiteScraper, repo grant.Repository, sites Sites) *SearchService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.WebGatherTimeout <= 0 || cfg.WebGatherTimeout >= cfg.Timeout {
		cfg.WebGatherTimeout = cfg.Timeout * 3 / 4
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 30 * time.Second
	}
	if cfg.SiteParallelism <= 0 {
		cfg.SiteParallelism = 4
	}
	return &SearchService{
		generative: generative,
		scraper:    scraper,
		repo:       repo,
		sites:      sites,
		gate:       NewAdmissionGate(cfg.MaxConcurrent),
		cfg:        cfg,
	}
}

// Gate exposes the admission gate for instrumentation.
func (s *SearchService) Gate() *AdmissionGate {
	return s.gate
}

// Search answers a query. When the service is at capacity only the generative
// source is consulted. Otherwise both branches run under the overall timeout;
// on expiry whatever has been gathered is returned, and if nothing has, a
// fresh generative-only answer is attempted.
func (s *SearchService) Search(ctx context.Context, req Request) *Result {
	release, ok := s.gate.TryAcquire()
	if !ok {
		log.Warn().
			Str("query", req.Query).
			Int64("capacity", s.gate.Capacity()).
			Msg("search capacity reached, answering from generative source only")
		return &Result{Grants: s.directAnswer(ctx, req), Outcome: OutcomeDegraded}
	}
	defer release()

	useWeb := req.UseWeb == nil || *req.UseWeb
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc := newAccumulator()
	done := make(chan error, 1)
	go func() {
		done <- s.run(runCtx, req, useWeb, acc)
	}()

	var err error
	select {
	case err = <-done:
		if err != nil && runCtx.Err() != nil {
			return s.onDeadline(ctx, req, acc, start)
		}
	case <-runCtx.Done():
		return s.onDeadline(ctx, req, acc, start)
	}

	if err != nil {
		acc.seal()
		log.Error().
			Err(err).
			Str("query", req.Query).
			Msg("search workflow failed, falling back to generative source")
		return &Result{Grants: s.directAnswer(ctx, req), Outcome: OutcomeFailed}
	}

	grants, updated, appended := acc.seal()
	grants = grant.FilterByCategory(grants, req.Category)
	log.Info().
		Str("query", req.Query).
		Int("results", len(grants)).
		Int("updated", updated).
		Int("appended", appended).
		Dur("elapsed", time.Since(start)).
		Msg("search completed")
	return &Result{Grants: grants, Outcome: OutcomeCompleted, Updated: updated, Appended: appended}
}

// onDeadline ends a run whose context expired. A caller that went away gets
// an empty failed result; nobody is left to read a fallback answer.
func (s *SearchService) onDeadline(ctx context.Context, req Request, acc *accumulator, start time.Time) *Result {
	partial, updated, appended := acc.seal()
	if err := ctx.Err(); err != nil {
		log.Info().
			Err(err).
			Str("query", req.Query).
			Dur("elapsed", time.Since(start)).
			Msg("search cancelled by caller")
		return &Result{Grants: []grant.Grant{}, Outcome: OutcomeFailed}
	}

	if len(partial) > 0 {
		grants := grant.FilterByCategory(partial, req.Category)
		log.Warn().
			Str("query", req.Query).
			Int("partial_results", len(grants)).
			Dur("elapsed", time.Since(start)).
			Msg("search timed out, returning partial results")
		return &Result{Grants: grants, Outcome: OutcomeTimedOut, Updated: updated, Appended: appended}
	}

	log.Warn().
		Str("query", req.Query).
		Dur("elapsed", time.Since(start)).
		Msg("search timed out without results, falling back to generative source")
	return &Result{Grants: s.directAnswer(ctx, req), Outcome: OutcomeTimedOut}
}

func (s *SearchService) run(ctx context.Context, req Request, useWeb bool, acc *accumulator) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		grants, err := s.generative.SearchGrants(gctx, req.Query, req.Category)
		if err != nil {
			return fmt.Errorf("generative search: %w", err)
		}
		acc.setBase(grants)
		return nil
	})

	if useWeb {
		g.Go(func() error {
			return s.merge(gctx, s.gatherWeb(gctx, req), acc)
		})
	}

	return g.Wait()
}

// gatherWeb collects records from the generative source's web mode and from
// every configured site. Individual failures are logged and contribute
// nothing.
func (s *SearchService) gatherWeb(ctx context.Context, req Request) []grant.Grant {
	webCtx, cancel := context.WithTimeout(ctx, s.cfg.WebGatherTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		gathered []grant.Grant
	)

	grants, err := s.generative.SearchGrantsWeb(webCtx, req.Query, req.Category)
	if err != nil {
		log.Warn().Err(err).Str("query", req.Query).Msg("generative web search failed")
	} else {
		gathered = append(gathered, grants...)
	}

	if s.scraper == nil || len(s.sites) == 0 {
		return gathered
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.SiteParallelism)
	for _, site := range s.sites {
		g.Go(func() error {
			grants, err := s.scraper.Scrape(webCtx, site, req.Query)
			if err != nil {
				log.Warn().Err(err).Str("site", site.Name).Msg("site scrape failed")
				return nil
			}
			mu.Lock()
			gathered = append(gathered, grants...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().
		Str("query", req.Query).
		Int("records", len(gathered)).
		Msg("web gathering finished")
	return gathered
}

// merge folds web records into the working set. A record matching a stored one
// refreshes the stored copy, which then stands in for it; anything else is
// appended as-is and not persisted.
func (s *SearchService) merge(ctx context.Context, web []grant.Grant, acc *accumulator) error {
	for i := range web {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := web[i]

		dupID, err := s.repo.FindDuplicate(ctx, &record)
		if err != nil {
			return fmt.Errorf("find duplicate for %q: %w", record.Name, err)
		}
		if dupID == "" {
			acc.addMerged(record, false)
			continue
		}

		fields := record.Fields
		fields.Source = markUpdated(record.Source)
		updated, err := s.repo.Update(ctx, dupID, fields)
		if err != nil {
			return fmt.Errorf("update %s: %w", dupID, err)
		}
		if updated == nil {
			acc.addMerged(record, false)
			continue
		}
		acc.addMerged(*updated, true)
	}
	return nil
}

// directAnswer asks only the generative source and swallows its failure.
func (s *SearchService) directAnswer(ctx context.Context, req Request) []grant.Grant {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FallbackTimeout)
	defer cancel()

	grants, err := s.generative.SearchGrants(fctx, req.Query, req.Category)
	if err != nil {
		event := log.Warn()
		if errors.Is(err, context.Canceled) {
			event = log.Debug()
		}
		event.Err(err).Str("query", req.Query).Msg("generative fallback failed")
		return []grant.Grant{}
	}
	if grants == nil {
		grants = []grant.Grant{}
	}
	return grants
}

func markUpdated(source string) string {
	if source == "" {
		source = "web"
	}
	return source + updatedSourceSuffix
}
