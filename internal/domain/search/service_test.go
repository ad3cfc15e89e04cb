package search

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/grant-scout/internal/domain/grant"
)

type mockGenerative struct {
	SearchGrantsFunc    func(ctx context.Context, query, category string) ([]grant.Grant, error)
	SearchGrantsWebFunc func(ctx context.Context, query, category string) ([]grant.Grant, error)
	searchCalls         atomic.Int32
	webCalls            atomic.Int32
}

func (m *mockGenerative) SearchGrants(ctx context.Context, query, category string) ([]grant.Grant, error) {
	m.searchCalls.Add(1)
	if m.SearchGrantsFunc != nil {
		return m.SearchGrantsFunc(ctx, query, category)
	}
	return nil, nil
}

func (m *mockGenerative) SearchGrantsWeb(ctx context.Context, query, category string) ([]grant.Grant, error) {
	m.webCalls.Add(1)
	if m.SearchGrantsWebFunc != nil {
		return m.SearchGrantsWebFunc(ctx, query, category)
	}
	return nil, nil
}

type mockScraper struct {
	ScrapeFunc func(ctx context.Context, site Site, query string) ([]grant.Grant, error)
	calls      atomic.Int32
}

func (m *mockScraper) Scrape(ctx context.Context, site Site, query string) ([]grant.Grant, error) {
	m.calls.Add(1)
	if m.ScrapeFunc != nil {
		return m.ScrapeFunc(ctx, site, query)
	}
	return nil, nil
}

// memoryRepository is an in-memory grant.Repository listing records in id order.
type memoryRepository struct {
	mu      sync.Mutex
	records map[string]grant.Grant
	now     time.Time
}

func newMemoryRepository(seed ...grant.Grant) *memoryRepository {
	r := &memoryRepository{
		records: make(map[string]grant.Grant),
		now:     time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC),
	}
	for _, g := range seed {
		r.records[g.ID] = g
	}
	return r
}

func (r *memoryRepository) Save(_ context.Context, g *grant.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[g.ID] = *g
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (*grant.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *memoryRepository) Update(_ context.Context, id string, fields grant.Fields) (*grant.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	updatedAt := r.now
	updated := grant.Grant{ID: existing.ID, Fields: fields, CreatedAt: existing.CreatedAt, UpdatedAt: &updatedAt}
	r.records[id] = updated
	return &updated, nil
}

func (r *memoryRepository) List(_ context.Context) ([]grant.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]grant.Grant, 0, len(r.records))
	for _, g := range r.records {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) ListByCategory(ctx context.Context, category string) ([]grant.Grant, error) {
	all, _ := r.List(ctx)
	return grant.FilterByCategory(all, category), nil
}

func (r *memoryRepository) FindDuplicate(ctx context.Context, candidate *grant.Grant) (string, error) {
	all, _ := r.List(ctx)
	return grant.FindDuplicate(candidate, all), nil
}

func testConfig() Config {
	return Config{
		MaxConcurrent:    2,
		Timeout:          2 * time.Second,
		WebGatherTimeout: time.Second,
		FallbackTimeout:  time.Second,
		SiteParallelism:  2,
	}
}

func record(id, name, org, category string) grant.Grant {
	return grant.Grant{ID: id, Fields: grant.Fields{Name: name, Organization: org, Category: category}}
}

func ids(grants []grant.Grant) []string {
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.ID)
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestSearchAtCapacityUsesGenerativeOnly(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("gen_1", "Direct", "Org", "tech")}, nil
		},
	}
	scraper := &mockScraper{
		ScrapeFunc: func(context.Context, Site, string) ([]grant.Grant, error) {
			t.Fatal("scraper must not run while at capacity")
			return nil, nil
		},
	}
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	svc := NewSearchService(cfg, gen, scraper, newMemoryRepository(), Sites{{Name: "site-a"}})

	release, ok := svc.Gate().TryAcquire()
	require.True(t, ok)
	defer release()

	result := svc.Search(context.Background(), Request{Query: "ai"})

	assert.Equal(t, OutcomeDegraded, result.Outcome)
	assert.Equal(t, []string{"gen_1"}, ids(result.Grants))
	assert.Zero(t, scraper.calls.Load())
	assert.Zero(t, gen.webCalls.Load())
	assert.EqualValues(t, 1, svc.Gate().InFlight())
}

func TestSearchAtCapacitySwallowsGenerativeError(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return nil, errors.New("llm down")
		},
	}
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	svc := NewSearchService(cfg, gen, &mockScraper{}, newMemoryRepository(), nil)

	release, _ := svc.Gate().TryAcquire()
	defer release()

	result := svc.Search(context.Background(), Request{Query: "ai"})
	assert.Equal(t, OutcomeDegraded, result.Outcome)
	assert.NotNil(t, result.Grants)
	assert.Empty(t, result.Grants)
}

func TestSearchMergesWebDuplicateIntoStore(t *testing.T) {
	created := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	stored := grant.Grant{
		ID:        "manual_1",
		Fields:    grant.Fields{Name: "Alpha Fund", Organization: "Alpha Org", Category: "tech", Source: "manual entry"},
		CreatedAt: created,
	}
	repo := newMemoryRepository(stored)

	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("gen_1", "Beta Grant", "Beta Org", "tech")}, nil
		},
	}
	web := grant.Grant{
		ID: "web_9",
		Fields: grant.Fields{
			Name:         "alpha fund",
			Organization: "Alpha Org",
			Description:  "Fresh description from the site",
			Category:     "tech",
			Source:       "web: site-a",
		},
	}
	scraper := &mockScraper{
		ScrapeFunc: func(context.Context, Site, string) ([]grant.Grant, error) {
			return []grant.Grant{web}, nil
		},
	}
	svc := NewSearchService(testConfig(), gen, scraper, repo, Sites{{Name: "site-a"}})

	result := svc.Search(context.Background(), Request{Query: "alpha"})

	require.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{"gen_1", "manual_1"}, ids(result.Grants))
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Appended)

	all, _ := repo.List(context.Background())
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "manual_1", got.ID)
	assert.Equal(t, created, got.CreatedAt)
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, "Fresh description from the site", got.Description)
	assert.Equal(t, "web: site-a (updated)", got.Source)
	assert.Equal(t, got, result.Grants[1])
	assert.Zero(t, svc.Gate().InFlight())
}

func TestSearchAppendsUnmatchedWebRecordsWithoutPersisting(t *testing.T) {
	repo := newMemoryRepository()
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("gen_1", "One", "Org", "tech")}, nil
		},
		SearchGrantsWebFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("web_1", "Two", "Org", "tech")}, nil
		},
	}
	svc := NewSearchService(testConfig(), gen, &mockScraper{}, repo, nil)

	result := svc.Search(context.Background(), Request{Query: "q"})

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{"gen_1", "web_1"}, ids(result.Grants))
	assert.Equal(t, 1, result.Appended)
	all, _ := repo.List(context.Background())
	assert.Empty(t, all)
}

func TestSearchWithoutWebSkipsScraping(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("gen_1", "One", "Org", "tech")}, nil
		},
	}
	scraper := &mockScraper{}
	svc := NewSearchService(testConfig(), gen, scraper, newMemoryRepository(), Sites{{Name: "a"}})

	result := svc.Search(context.Background(), Request{Query: "q", UseWeb: boolPtr(false)})

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Len(t, result.Grants, 1)
	assert.Zero(t, scraper.calls.Load())
	assert.Zero(t, gen.webCalls.Load())
}

func TestSearchAppliesCategoryFilterAfterMerge(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{
				record("gen_1", "One", "Org", "Deep Tech"),
				record("gen_2", "Two", "Org", "Agriculture"),
			}, nil
		},
	}
	scraper := &mockScraper{
		ScrapeFunc: func(context.Context, Site, string) ([]grant.Grant, error) {
			return []grant.Grant{
				record("web_1", "Three", "Org", "TECH"),
				record("web_2", "Four", "Org", "culture"),
			}, nil
		},
	}
	svc := NewSearchService(testConfig(), gen, scraper, newMemoryRepository(), Sites{{Name: "a"}})

	result := svc.Search(context.Background(), Request{Query: "q", Category: "tech"})

	assert.Equal(t, []string{"gen_1", "web_1"}, ids(result.Grants))
}

func TestSearchIsolatesSiteFailures(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsWebFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return nil, errors.New("web mode unavailable")
		},
	}
	scraper := &mockScraper{
		ScrapeFunc: func(_ context.Context, site Site, _ string) ([]grant.Grant, error) {
			if site.Name == "broken" {
				return nil, errors.New("process exited 1")
			}
			return []grant.Grant{record("web_"+site.Name, "From "+site.Name, "Org", "x")}, nil
		},
	}
	sites := Sites{{Name: "broken"}, {Name: "good"}}
	svc := NewSearchService(testConfig(), gen, scraper, newMemoryRepository(), sites)

	result := svc.Search(context.Background(), Request{Query: "q"})

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{"web_good"}, ids(result.Grants))
	assert.EqualValues(t, 2, scraper.calls.Load())
}

func TestSearchTimeoutReturnsPartialResults(t *testing.T) {
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })

	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("gen_1", "One", "Org", "x"), record("gen_2", "Two", "Org", "x")}, nil
		},
		SearchGrantsWebFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			<-unblock
			return nil, nil
		},
	}
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.WebGatherTimeout = 50 * time.Millisecond
	svc := NewSearchService(cfg, gen, &mockScraper{}, newMemoryRepository(), nil)

	start := time.Now()
	result := svc.Search(context.Background(), Request{Query: "q"})

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, []string{"gen_1", "gen_2"}, ids(result.Grants))
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, gen.searchCalls.Load())
	assert.Zero(t, svc.Gate().InFlight())
}

func TestSearchTimeoutWithoutResultsFallsBack(t *testing.T) {
	var calls atomic.Int32
	gen := &mockGenerative{
		SearchGrantsFunc: func(ctx context.Context, _, _ string) ([]grant.Grant, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return []grant.Grant{record("gen_fallback", "Fallback", "Org", "x")}, nil
		},
	}
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.WebGatherTimeout = 20 * time.Millisecond
	svc := NewSearchService(cfg, gen, &mockScraper{}, newMemoryRepository(), nil)

	result := svc.Search(context.Background(), Request{Query: "q", UseWeb: boolPtr(false)})

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, []string{"gen_fallback"}, ids(result.Grants))
	assert.EqualValues(t, 2, calls.Load())
	assert.Zero(t, svc.Gate().InFlight())
}

func TestSearchCallerCancellationSkipsFallback(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsFunc: func(ctx context.Context, _, _ string) ([]grant.Grant, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := NewSearchService(testConfig(), gen, &mockScraper{}, newMemoryRepository(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result := svc.Search(ctx, Request{Query: "q", UseWeb: boolPtr(false)})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.NotNil(t, result.Grants)
	assert.Empty(t, result.Grants)
	assert.EqualValues(t, 1, gen.searchCalls.Load())
	assert.Zero(t, svc.Gate().InFlight())
}

func TestSearchTimeoutPartialFilteredToEmptyDoesNotFallBack(t *testing.T) {
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })

	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return []grant.Grant{record("gen_1", "One", "Org", "health")}, nil
		},
		SearchGrantsWebFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			<-unblock
			return nil, nil
		},
	}
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.WebGatherTimeout = 50 * time.Millisecond
	svc := NewSearchService(cfg, gen, &mockScraper{}, newMemoryRepository(), nil)

	result := svc.Search(context.Background(), Request{Query: "q", Category: "energy"})

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Empty(t, result.Grants)
	assert.EqualValues(t, 1, gen.searchCalls.Load())
}

func TestSearchFailureFallsBackToGenerative(t *testing.T) {
	var calls atomic.Int32
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("unparseable output")
			}
			return []grant.Grant{record("gen_retry", "Retry", "Org", "x")}, nil
		},
	}
	svc := NewSearchService(testConfig(), gen, &mockScraper{}, newMemoryRepository(), nil)

	result := svc.Search(context.Background(), Request{Query: "q", UseWeb: boolPtr(false)})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, []string{"gen_retry"}, ids(result.Grants))
	assert.Zero(t, svc.Gate().InFlight())
}

func TestSearchFailureWithFailingFallbackReturnsEmpty(t *testing.T) {
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			return nil, errors.New("llm down")
		},
	}
	svc := NewSearchService(testConfig(), gen, &mockScraper{}, newMemoryRepository(), nil)

	result := svc.Search(context.Background(), Request{Query: "q"})

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.NotNil(t, result.Grants)
	assert.Empty(t, result.Grants)
}

func TestSearchNeverExceedsCeiling(t *testing.T) {
	const ceiling = 2
	var (
		svc  *SearchService
		peak atomic.Int64
	)
	gen := &mockGenerative{
		SearchGrantsFunc: func(context.Context, string, string) ([]grant.Grant, error) {
			n := svc.Gate().InFlight()
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			return nil, nil
		},
	}
	cfg := testConfig()
	cfg.MaxConcurrent = ceiling
	svc = NewSearchService(cfg, gen, &mockScraper{}, newMemoryRepository(), nil)

	var (
		wg       sync.WaitGroup
		degraded atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Search(context.Background(), Request{Query: "q", UseWeb: boolPtr(false)}).Outcome == OutcomeDegraded {
				degraded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(ceiling))
	assert.Positive(t, degraded.Load())
	assert.Zero(t, svc.Gate().InFlight())
	_, ok := svc.Gate().TryAcquire()
	assert.True(t, ok)
}

func TestAdmissionGateReleaseIsIdempotent(t *testing.T) {
	gate := NewAdmissionGate(1)

	release, ok := gate.TryAcquire()
	require.True(t, ok)
	_, ok = gate.TryAcquire()
	assert.False(t, ok)

	release()
	release()
	assert.Zero(t, gate.InFlight())

	_, ok = gate.TryAcquire()
	assert.True(t, ok)
	_, ok = gate.TryAcquire()
	assert.False(t, ok)
}

func TestAccumulatorReplacesByID(t *testing.T) {
	acc := newAccumulator()
	acc.setBase([]grant.Grant{record("a", "A", "", ""), record("b", "B", "", "")})
	acc.addMerged(record("b", "B2", "", ""), true)
	acc.addMerged(record("c", "C", "", ""), false)

	grants, updated, appended := acc.seal()
	assert.Equal(t, []string{"a", "b", "c"}, ids(grants))
	assert.Equal(t, "B2", grants[1].Name)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, appended)

	assert.False(t, acc.addMerged(record("d", "D", "", ""), false))
	grants, _, _ = acc.seal()
	assert.Len(t, grants, 3)
}
