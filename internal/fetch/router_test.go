package fetch

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"trendwire/internal/config"
	"trendwire/internal/core"
)

// stubFetcher counts calls and returns a scripted outcome.
type stubFetcher struct {
	kind  core.FetcherKind
	fail  bool
	calls atomic.Int64
}

func (s *stubFetcher) Kind() core.FetcherKind { return s.kind }

func (s *stubFetcher) Fetch(_ context.Context, rawURL string) core.FetchOutcome {
	s.calls.Add(1)
	if s.fail {
		return core.Failure(string(s.kind)+" refused", s.kind)
	}
	body := core.NewFetchedBody(rawURL, "stub title", "stub content from "+string(s.kind))
	body.Metadata["fetcher"] = string(s.kind)
	return core.Fetched(body, s.kind, 0)
}

func newStubRouter(t *testing.T, cfg config.Scraper) (*Router, map[core.FetcherKind]*stubFetcher) {
	t.Helper()
	r := NewRouter(cfg)
	stubs := make(map[core.FetcherKind]*stubFetcher)
	for _, k := range []core.FetcherKind{core.KindReader, core.KindPlain, core.KindBrowser} {
		s := &stubFetcher{kind: k}
		stubs[k] = s
		r.fetchers[k] = s
	}
	return r, stubs
}

func TestOrderDefault(t *testing.T) {
	r := NewRouter(config.Scraper{})
	got := r.order("https://random-site.example.org/post/1")
	want := []core.FetcherKind{core.KindReader, core.KindPlain, core.KindBrowser}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOrderJSRenderDomainsPreferBrowser(t *testing.T) {
	r := NewRouter(config.Scraper{})
	for _, u := range []string{
		"https://weibo.com/status/1",
		"https://m.weibo.cn/detail/2",
		"https://x.com/someone/status/3",
		"https://www.douyin.com/video/4",
	} {
		if got := r.order(u); got[0] != core.KindBrowser {
			t.Errorf("order(%q)[0] = %v, want browser", u, got[0])
		}
	}
}

func TestOrderReaderPreferredDomains(t *testing.T) {
	r := NewRouter(config.Scraper{})
	for _, u := range []string{
		"https://zhuanlan.zhihu.com/p/1",
		"https://mp.weixin.qq.com/s/abc",
		"https://www.thepaper.cn/newsDetail_1",
	} {
		if got := r.order(u); got[0] != core.KindReader {
			t.Errorf("order(%q)[0] = %v, want reader", u, got[0])
		}
	}
}

func TestOrderDomainRuleWinsOverBuiltins(t *testing.T) {
	r := NewRouter(config.Scraper{
		DomainRules: map[string]string{"weibo.com": "plain"},
	})
	if got := r.order("https://weibo.com/status/1"); got[0] != core.KindPlain {
		t.Errorf("order[0] = %v, want plain from domain rule", got[0])
	}
}

func TestOrderExactRuleBeatsSuffixRule(t *testing.T) {
	r := NewRouter(config.Scraper{
		DomainRules: map[string]string{
			"qq.com":      "plain",
			"news.qq.com": "browser",
		},
	})
	if got := r.order("https://news.qq.com/rain/a123"); got[0] != core.KindBrowser {
		t.Errorf("order[0] = %v, want browser from the exact host rule", got[0])
	}
	if got := r.order("https://qq.com/index"); got[0] != core.KindPlain {
		t.Errorf("order[0] = %v, want plain from the exact host rule", got[0])
	}
}

func TestOrderIgnoresUnknownRule(t *testing.T) {
	r := NewRouter(config.Scraper{
		DomainRules: map[string]string{"example.com": "teleport"},
	})
	if got := r.order("https://example.com/a"); got[0] != core.KindReader {
		t.Errorf("order[0] = %v, unknown rule should fall back to default", got[0])
	}
}

func TestScrapeFallsThroughOnFailure(t *testing.T) {
	r, stubs := newStubRouter(t, config.Scraper{})
	stubs[core.KindReader].fail = true

	out := r.Scrape(context.Background(), "https://example.com/a")
	if !out.Success {
		t.Fatalf("Scrape() failed: %s", out.Err)
	}
	if out.Kind != core.KindPlain {
		t.Errorf("Kind = %v, want plain after reader failure", out.Kind)
	}
	if stubs[core.KindBrowser].calls.Load() != 0 {
		t.Error("browser tried after plain already succeeded")
	}
}

func TestScrapeAllFailersReportLastError(t *testing.T) {
	r, stubs := newStubRouter(t, config.Scraper{})
	for _, s := range stubs {
		s.fail = true
	}

	out := r.Scrape(context.Background(), "https://example.com/a")
	if out.Success {
		t.Fatal("Scrape() succeeded with all fetchers failing")
	}
	if !strings.HasPrefix(out.Err, "all fetchers failed: ") {
		t.Errorf("Err = %q", out.Err)
	}
	if !strings.Contains(out.Err, "browser refused") {
		t.Errorf("Err = %q, want last fetcher's error", out.Err)
	}
}

func TestScrapeManyTruncatesAndReportsProgress(t *testing.T) {
	r, _ := newStubRouter(t, config.Scraper{TopN: 2, MaxConcurrent: 2})

	urls := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
	var progressCalls atomic.Int64
	results := r.ScrapeMany(context.Background(), urls, func(done, total int, url string, out core.FetchOutcome) {
		progressCalls.Add(1)
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
	})

	if len(results) != 2 {
		t.Fatalf("ScrapeMany() returned %d results, want 2 after top_n cap", len(results))
	}
	if _, ok := results["https://a.com/3"]; ok {
		t.Error("URL beyond top_n was fetched")
	}
	if progressCalls.Load() != 2 {
		t.Errorf("progress called %d times, want 2", progressCalls.Load())
	}
}

func TestStatsCounters(t *testing.T) {
	r, stubs := newStubRouter(t, config.Scraper{})
	stubs[core.KindReader].fail = true

	r.Scrape(context.Background(), "https://example.com/a")
	stats := r.Stats()
	if stats.Failures[core.KindReader] != 1 {
		t.Errorf("Failures[reader] = %d, want 1", stats.Failures[core.KindReader])
	}
	if stats.Successes[core.KindPlain] != 1 {
		t.Errorf("Successes[plain] = %d, want 1", stats.Successes[core.KindPlain])
	}
}
