package fetch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/logger"
)

// jsRenderDomains only serve meaningful content after client-side rendering;
// the headless browser is tried first for them.
var jsRenderDomains = []string{
	"weibo.com", "weibo.cn", "m.weibo.cn",
	"douyin.com", "www.douyin.com",
	"twitter.com", "x.com",
	"instagram.com", "facebook.com", "tiktok.com",
}

// readerPreferredDomains are mostly Chinese portals where the managed reader
// API extracts cleaner text than local parsing.
var readerPreferredDomains = []string{
	"zhihu.com", "www.zhihu.com", "zhuanlan.zhihu.com",
	"mp.weixin.qq.com",
	"36kr.com", "www.36kr.com",
	"ithome.com", "www.ithome.com",
	"baidu.com", "news.baidu.com",
	"finance.sina.com.cn", "tech.sina.com.cn", "news.sina.com.cn",
	"sohu.com", "www.sohu.com",
	"qq.com", "news.qq.com",
	"thepaper.cn", "www.thepaper.cn",
	"jiemian.com", "www.jiemian.com",
}

// defaultOrder is the strategy order when no domain rule applies.
var defaultOrder = []core.FetcherKind{core.KindReader, core.KindPlain, core.KindBrowser}

// ProgressFunc is invoked after each URL in a batch completes, with the
// number completed so far and the batch total.
type ProgressFunc func(completed, total int, url string, outcome core.FetchOutcome)

// Router picks a fetch strategy per URL and falls through to the next
// enabled strategy on failure. It is cache-agnostic: callers decide which
// URLs need fetching and persist the successes.
type Router struct {
	cfg      config.Scraper
	fetchers map[core.FetcherKind]Fetcher

	mu        sync.Mutex
	successes map[core.FetcherKind]int
	failures  map[core.FetcherKind]int
}

// NewRouter builds a router over the enabled fetchers.
func NewRouter(cfg config.Scraper) *Router {
	fetchers := make(map[core.FetcherKind]Fetcher)
	if cfg.Methods.Reader.Enabled {
		fetchers[core.KindReader] = NewReaderFetcher(cfg.Methods.Reader)
	}
	if cfg.Methods.Plain.Enabled {
		fetchers[core.KindPlain] = NewPlainFetcher(cfg.Methods.Plain)
	}
	if cfg.Methods.Browser.Enabled {
		fetchers[core.KindBrowser] = NewBrowserFetcher(cfg.Methods.Browser)
	}
	return &Router{
		cfg:       cfg,
		fetchers:  fetchers,
		successes: make(map[core.FetcherKind]int),
		failures:  make(map[core.FetcherKind]int),
	}
}

// Close releases fetcher resources (the shared browser, if launched).
func (r *Router) Close() error {
	if f, ok := r.fetchers[core.KindBrowser]; ok {
		if b, ok := f.(*BrowserFetcher); ok {
			return b.Close()
		}
	}
	return nil
}

// order decides which strategies to try for rawURL, most preferred first.
// Precedence: explicit domain rule, then JS-render list, then
// reader-preferred list, then the default order.
func (r *Router) order(rawURL string) []core.FetcherKind {
	domain := domainOf(rawURL)

	var preferred core.FetcherKind
	// Exact host rules win before any suffix scan, so overlapping rules
	// (qq.com and news.qq.com) resolve independently of map order.
	if kind, ok := r.cfg.DomainRules[domain]; ok {
		preferred = validRuleKind(domain, kind)
	}
	if preferred == "" {
		for entry, kind := range r.cfg.DomainRules {
			if entry != domain && domainMatches(domain, entry) {
				preferred = validRuleKind(entry, kind)
				break
			}
		}
	}
	if preferred == "" {
		for _, entry := range jsRenderDomains {
			if domainMatches(domain, entry) {
				preferred = core.KindBrowser
				break
			}
		}
	}
	if preferred == "" {
		for _, entry := range readerPreferredDomains {
			if domainMatches(domain, entry) {
				preferred = core.KindReader
				break
			}
		}
	}

	if preferred == "" {
		return defaultOrder
	}
	order := []core.FetcherKind{preferred}
	for _, k := range defaultOrder {
		if k != preferred {
			order = append(order, k)
		}
	}
	return order
}

func validRuleKind(domain, kind string) core.FetcherKind {
	switch k := core.FetcherKind(kind); k {
	case core.KindReader, core.KindPlain, core.KindBrowser:
		return k
	default:
		logger.Warn("ignoring unknown fetcher in domain rule", "domain", domain, "fetcher", kind)
		return ""
	}
}

// Scrape fetches one URL, trying strategies in preference order. The first
// success wins; if every fetcher fails the last error is reported.
func (r *Router) Scrape(ctx context.Context, rawURL string) core.FetchOutcome {
	var lastErr string
	for _, kind := range r.order(rawURL) {
		fetcher, ok := r.fetchers[kind]
		if !ok {
			continue
		}
		outcome := fetcher.Fetch(ctx, rawURL)

		r.mu.Lock()
		if outcome.Success {
			r.successes[kind]++
		} else {
			r.failures[kind]++
		}
		r.mu.Unlock()

		if outcome.Success {
			return outcome
		}
		lastErr = outcome.Err
		logger.Debug("fetcher failed, trying next", "url", rawURL, "fetcher", kind, "error", outcome.Err)
	}

	if lastErr == "" {
		lastErr = "no fetchers enabled"
	}
	return core.Failure(fmt.Sprintf("all fetchers failed: %s", lastErr), "")
}

// ScrapeMany fetches up to top_n of the given URLs with bounded concurrency.
// Failed URLs are present in the result with failure outcomes. progress may
// be nil.
func (r *Router) ScrapeMany(ctx context.Context, urls []string, progress ProgressFunc) map[string]core.FetchOutcome {
	if r.cfg.TopN > 0 && len(urls) > r.cfg.TopN {
		urls = urls[:r.cfg.TopN]
	}

	results := make(map[string]core.FetchOutcome, len(urls))
	if len(urls) == 0 {
		return results
	}

	limit := r.cfg.MaxConcurrent
	if limit <= 0 {
		limit = 5
	}

	var (
		mu        sync.Mutex
		completed int
	)
	total := len(urls)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			outcome := r.Scrape(gctx, u)
			mu.Lock()
			results[u] = outcome
			completed++
			done := completed
			mu.Unlock()
			if progress != nil {
				progress(done, total, u, outcome)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("batch scrape finished", "total", total, "succeeded", countSuccesses(results))
	return results
}

func countSuccesses(results map[string]core.FetchOutcome) int {
	n := 0
	for _, o := range results {
		if o.Success {
			n++
		}
	}
	return n
}

// RouterStats summarizes per-strategy outcomes since construction.
type RouterStats struct {
	Enabled   []core.FetcherKind       `json:"enabled"`
	Successes map[core.FetcherKind]int `json:"successes"`
	Failures  map[core.FetcherKind]int `json:"failures"`
}

// Stats reports per-strategy success and failure counts.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := RouterStats{
		Successes: make(map[core.FetcherKind]int, len(r.successes)),
		Failures:  make(map[core.FetcherKind]int, len(r.failures)),
	}
	for _, k := range defaultOrder {
		if _, ok := r.fetchers[k]; ok {
			stats.Enabled = append(stats.Enabled, k)
		}
	}
	for k, v := range r.successes {
		stats.Successes[k] = v
	}
	for k, v := range r.failures {
		stats.Failures[k] = v
	}
	return stats
}
