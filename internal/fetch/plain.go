package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/logger"
)

const (
	htmlExcerptBytes = 10 * 1024
	maxImages        = 10
)

// PlainFetcher retrieves pages over plain HTTP and extracts the article body
// locally. It is the cheapest strategy and works for static news pages.
type PlainFetcher struct {
	cfg    config.PlainMethod
	client *http.Client
}

// NewPlainFetcher builds a plain-HTTP fetcher from its method config.
func NewPlainFetcher(cfg config.PlainMethod) *PlainFetcher {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &PlainFetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *PlainFetcher) Kind() core.FetcherKind { return core.KindPlain }

// Fetch downloads rawURL and extracts title, body text, author and images.
func (f *PlainFetcher) Fetch(ctx context.Context, rawURL string) core.FetchOutcome {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return core.Failure(fmt.Sprintf("invalid request: %v", err), f.Kind())
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return core.Failure(fmt.Sprintf("request failed: %v", err), f.Kind())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.Failure(fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, rawURL), f.Kind())
	}

	// Decode to UTF-8: charset from the Content-Type header, falling back to
	// a meta declaration sniffed from the first 1 KB, then UTF-8.
	decoded, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return core.Failure(fmt.Sprintf("charset detection failed: %v", err), f.Kind())
	}
	htmlBytes, err := io.ReadAll(decoded)
	if err != nil {
		return core.Failure(fmt.Sprintf("response read failed: %v", err), f.Kind())
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return core.Failure(fmt.Sprintf("invalid URL: %v", err), f.Kind())
	}

	body := f.extract(rawURL, pageURL, htmlBytes)
	if body == nil {
		return core.Failure("no extractable content", f.Kind())
	}

	logger.Debug("plain fetch succeeded",
		"url", rawURL, "chars", body.WordCount, "elapsed", time.Since(start))
	return core.Fetched(body, f.Kind(), time.Since(start))
}

func (f *PlainFetcher) extract(rawURL string, pageURL *url.URL, htmlBytes []byte) *core.FetchedBody {
	var title, content string

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		title = article.Title
		content = strings.TrimSpace(article.TextContent)
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if docErr != nil && content == "" {
		return nil
	}

	if doc != nil {
		if content == "" {
			content = fallbackText(doc)
		}
		if title == "" {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	body := core.NewFetchedBody(rawURL, title, cleanContent(content))
	body.Metadata["fetcher"] = string(f.Kind())

	if len(htmlBytes) > htmlExcerptBytes {
		body.HTMLExcerpt = string(htmlBytes[:htmlExcerptBytes])
	} else {
		body.HTMLExcerpt = string(htmlBytes)
	}

	if doc != nil {
		body.Author = extractAuthor(doc)
		body.Images = extractImages(doc, pageURL)
		if ts := extractPublishTime(doc); ts != nil {
			body.PublishTime = ts
		}
	}
	return body
}

// fallbackText extracts body text when readability finds nothing: boilerplate
// containers are removed, then the innermost article wins, then main, then
// the whole body.
func fallbackText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	if articles := doc.Find("article"); articles.Length() > 0 {
		return strings.TrimSpace(articles.Last().Text())
	}
	if mains := doc.Find("main"); mains.Length() > 0 {
		return strings.TrimSpace(mains.First().Text())
	}
	return strings.TrimSpace(doc.Find("body").Text())
}

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[name="author"]`,
		`meta[property="article:author"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func extractPublishTime(doc *goquery.Document) *time.Time {
	candidates := []string{}
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(c)); err == nil {
				return &t
			}
		}
	}
	return nil
}

func extractImages(doc *goquery.Document, pageURL *url.URL) []string {
	var images []string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		lower := strings.ToLower(src)
		if strings.HasSuffix(lower, ".ico") || strings.Contains(lower, "icon") {
			return true
		}
		ref, err := url.Parse(src)
		if err != nil {
			return true
		}
		abs := pageURL.ResolveReference(ref).String()
		if !strings.HasPrefix(abs, "http") {
			return true
		}
		images = append(images, abs)
		return len(images) < maxImages
	})
	return images
}
