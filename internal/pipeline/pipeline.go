package pipeline

import (
	"context"

	"trendwire/internal/analyze"
	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/fetch"
	"trendwire/internal/hotspot"
	"trendwire/internal/llm"
	"trendwire/internal/logger"
	"trendwire/internal/store"
)

// Pipeline wires the content store, fetch router and analyzers into the
// end-to-end flow: enrich ranked items with article bodies, then run the
// LLM analyses over them. The router stays cache-agnostic; the pipeline
// owns the filter-unseen and persist steps around it.
type Pipeline struct {
	cfg      *config.Config
	store    *store.ContentStore
	router   *fetch.Router
	analyzer *analyze.Analyzer
	hotspot  *hotspot.Analyzer
}

// New builds a pipeline from config, opening the content store.
func New(cfg *config.Config) (*Pipeline, error) {
	st, err := store.New(cfg.Store.Path, cfg.Store.RetentionDays)
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(cfg.LLM)
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		router:   fetch.NewRouter(cfg.Scraper),
		analyzer: analyze.New(client, cfg),
		hotspot:  hotspot.New(cfg.AIAnalysis, nil),
	}, nil
}

// Close releases the router's browser and the store.
func (p *Pipeline) Close() error {
	if err := p.router.Close(); err != nil {
		logger.Error("closing fetch router failed", err)
	}
	return p.store.Close()
}

// Store exposes the content store for cache maintenance commands.
func (p *Pipeline) Store() *store.ContentStore { return p.store }

// Router exposes the fetch router for scrape commands.
func (p *Pipeline) Router() *fetch.Router { return p.router }

// Analyzer exposes the LLM analyzer.
func (p *Pipeline) Analyzer() *analyze.Analyzer { return p.analyzer }

// Hotspot exposes the hotspot analyzer.
func (p *Pipeline) Hotspot() *hotspot.Analyzer { return p.hotspot }

// ScrapeURLs resolves each URL to an outcome, serving fresh cache entries
// without network work and persisting every new success. Duplicate URLs
// collapse to one fetch. progress fires only for URLs that actually fetch.
func (p *Pipeline) ScrapeURLs(ctx context.Context, urls []string, progress fetch.ProgressFunc) map[string]core.FetchOutcome {
	deduped := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		deduped = append(deduped, u)
	}

	results := make(map[string]core.FetchOutcome, len(deduped))
	if len(deduped) == 0 {
		return results
	}

	cached := p.store.GetMany(deduped)
	for u, body := range cached {
		results[u] = core.Fetched(body, core.FetcherKind(body.Metadata["fetcher"]), 0)
	}

	unseen := p.store.FilterUnseen(deduped)
	if len(unseen) > 0 {
		for u, outcome := range p.router.ScrapeMany(ctx, unseen, progress) {
			if outcome.Success {
				p.store.Put(outcome.Body, outcome.Kind)
			}
			results[u] = outcome
		}
	}

	logger.Info("scrape batch resolved",
		"urls", len(deduped), "cached", len(cached), "fetched", len(unseen))
	return results
}

// Enrich fills item Content from fetched article bodies. Items sharing a URL
// share one fetch; cached URLs cost no network work; failed fetches leave
// the item untouched. The input slice is not modified.
func (p *Pipeline) Enrich(ctx context.Context, items []core.RankedItem, progress fetch.ProgressFunc) []core.RankedItem {
	out := make([]core.RankedItem, len(items))
	copy(out, items)

	if !p.cfg.Scraper.Enabled {
		return out
	}

	urls := make([]string, 0, len(items))
	for _, item := range items {
		if item.URL != "" {
			urls = append(urls, item.URL)
		}
	}
	if len(urls) == 0 {
		return out
	}

	results := p.ScrapeURLs(ctx, urls, progress)

	enriched := 0
	for i := range out {
		if out[i].URL == "" {
			continue
		}
		if outcome, ok := results[out[i].URL]; ok && outcome.Success {
			out[i].Content = outcome.Body.Content
			enriched++
		}
	}
	logger.Info("enrichment finished", "items", len(items), "enriched", enriched)
	return out
}

// Analyze enriches items and runs the full LLM analysis over them.
func (p *Pipeline) Analyze(ctx context.Context, items []core.RankedItem, date string) core.AnalysisResult {
	enriched := p.Enrich(ctx, items, nil)
	return p.analyzer.AnalyzeFull(ctx, enriched, date)
}

// AnalyzeHotspots runs the hotspot trend report over keyword statistics.
func (p *Pipeline) AnalyzeHotspots(ctx context.Context, req hotspot.Request) core.HotspotReport {
	return p.hotspot.Analyze(ctx, req)
}

// Sweep removes expired cache rows and returns the count.
func (p *Pipeline) Sweep() int {
	return p.store.Sweep()
}
