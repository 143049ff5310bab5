package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/logger"
)

// contentSelectors are tried in order; the first whose inner text reaches
// minContentChars wins.
var contentSelectors = []string{
	"article",
	`[role="article"]`,
	".article-content",
	".post-content",
	".entry-content",
	".content-article",
	"#article-content",
	".news-content",
	".detail-content",
	"main article",
	".main-content",
}

const minContentChars = 100

// BrowserFetcher renders pages in a shared headless browser. The browser
// process launches lazily on first use; each URL gets its own page that is
// always closed, so one bad page cannot leak into the next fetch.
type BrowserFetcher struct {
	cfg config.BrowserMethod

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher builds a browser fetcher. No browser is launched yet.
func NewBrowserFetcher(cfg config.BrowserMethod) *BrowserFetcher {
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) Kind() core.FetcherKind { return core.KindBrowser }

// ensureBrowser launches the shared browser on first use.
func (f *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	u, err := launcher.New().Headless(f.cfg.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	f.browser = browser
	logger.Info("headless browser launched", "headless", f.cfg.Headless)
	return f.browser, nil
}

// Close shuts down the shared browser if one was launched.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

// hardTimeout is the whole-fetch deadline, from the timeout config key in
// seconds.
func (f *BrowserFetcher) hardTimeout() time.Duration {
	if f.cfg.Timeout > 0 {
		return time.Duration(f.cfg.Timeout) * time.Second
	}
	return 60 * time.Second
}

// waitTimeout bounds only the post-navigation load wait, in milliseconds.
func (f *BrowserFetcher) waitTimeout() time.Duration {
	if f.cfg.WaitTimeout > 0 {
		return time.Duration(f.cfg.WaitTimeout) * time.Millisecond
	}
	return 30 * time.Second
}

// Fetch renders rawURL and extracts the article body from the live DOM.
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) core.FetchOutcome {
	start := time.Now()

	browser, err := f.ensureBrowser()
	if err != nil {
		return core.Failure(err.Error(), f.Kind())
	}

	var body *core.FetchedBody
	err = rod.Try(func() {
		page := stealth.MustPage(browser)
		defer page.MustClose()

		page = page.Context(ctx).Timeout(f.hardTimeout())
		page.MustSetViewport(f.cfg.ViewportW, f.cfg.ViewportH, 1, false)
		page.MustNavigate(rawURL)

		// The load wait gets its own tighter budget inside the fetch deadline.
		wait := page.Timeout(f.waitTimeout())
		switch f.cfg.WaitUntil {
		case "domcontentloaded":
			wait.MustWaitDOMStable()
		case "networkidle":
			wait.MustWaitLoad()
			wait.MustWaitRequestIdle()()
		default:
			wait.MustWaitLoad()
		}

		// Late-injected content on social platforms needs a settle beat.
		time.Sleep(time.Second)

		body = f.extractFromPage(page, rawURL)
	})
	if err != nil {
		return core.Failure(fmt.Sprintf("browser fetch failed: %v", err), f.Kind())
	}
	if body == nil || strings.TrimSpace(body.Content) == "" {
		return core.Failure("no extractable content after rendering", f.Kind())
	}

	logger.Debug("browser fetch succeeded",
		"url", rawURL, "chars", body.WordCount, "elapsed", time.Since(start))
	return core.Fetched(body, f.Kind(), time.Since(start))
}

func (f *BrowserFetcher) extractFromPage(page *rod.Page, rawURL string) *core.FetchedBody {
	title := page.MustEval(`() => {
		const og = document.querySelector('meta[property="og:title"]');
		if (og && og.content) return og.content;
		return document.title || '';
	}`).Str()

	content := page.MustEval(`(selectors, minChars) => {
		for (const sel of selectors) {
			const el = document.querySelector(sel);
			if (el && el.innerText && el.innerText.trim().length >= minChars) {
				return el.innerText;
			}
		}
		return '';
	}`, contentSelectors, minContentChars).Str()

	if strings.TrimSpace(content) == "" {
		content = page.MustEval(`() => {
			const clone = document.body.cloneNode(true);
			const junk = 'script,style,nav,header,footer,aside,.sidebar,.ads,.advertisement,.comment,.comments';
			clone.querySelectorAll(junk).forEach(el => el.remove());
			return clone.innerText || '';
		}`).Str()
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	body := core.NewFetchedBody(rawURL, strings.TrimSpace(title), cleanContent(content))
	body.Metadata["fetcher"] = string(f.Kind())

	images := page.MustEval(`(max) => {
		const urls = [];
		for (const img of document.querySelectorAll('article img, .content img, .post img')) {
			if (img.src && img.src.startsWith('http')) {
				urls.push(img.src);
				if (urls.length >= max) break;
			}
		}
		return urls;
	}`, maxImages)
	for _, v := range images.Arr() {
		body.Images = append(body.Images, v.Str())
	}

	body.Author = strings.TrimSpace(page.MustEval(`() => {
		for (const sel of ['meta[name="author"]', 'meta[property="article:author"]']) {
			const m = document.querySelector(sel);
			if (m && m.content) return m.content;
		}
		for (const sel of ['.author', '.byline', '[rel="author"]']) {
			const el = document.querySelector(sel);
			if (el && el.innerText) return el.innerText;
		}
		return '';
	}`).Str())

	published := page.MustEval(`() => {
		const m = document.querySelector('meta[property="article:published_time"]');
		if (m && m.content) return m.content;
		const t = document.querySelector('time[datetime]');
		if (t) return t.getAttribute('datetime') || '';
		return '';
	}`).Str()
	if published != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(published)); err == nil {
				body.PublishTime = &t
				break
			}
		}
	}
	return body
}
