package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/logger"
)

// ReaderFetcher fetches articles through a managed reader API that converts
// any page to plain text or markdown server-side. The target URL is appended
// to the API base path.
type ReaderFetcher struct {
	cfg    config.ReaderMethod
	client *http.Client
}

// ReaderOptions are per-request extraction hints forwarded as headers.
type ReaderOptions struct {
	NoCache         bool
	TargetSelector  string
	WaitForSelector string
	RemoveSelector  string
}

// NewReaderFetcher builds a reader fetcher from its method config.
func NewReaderFetcher(cfg config.ReaderMethod) *ReaderFetcher {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReaderFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *ReaderFetcher) Kind() core.FetcherKind { return core.KindReader }

// Fetch retrieves rawURL through the reader API with default options.
func (f *ReaderFetcher) Fetch(ctx context.Context, rawURL string) core.FetchOutcome {
	return f.FetchWithOptions(ctx, rawURL, ReaderOptions{})
}

// FetchWithOptions retrieves rawURL with per-request extraction hints.
func (f *ReaderFetcher) FetchWithOptions(ctx context.Context, rawURL string, opts ReaderOptions) core.FetchOutcome {
	start := time.Now()

	// Fragments are client-side only; drop them before joining the target
	// onto the reader base.
	target := rawURL
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	endpoint := strings.TrimRight(f.cfg.APIURL, "/") + "/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.Failure(fmt.Sprintf("invalid reader request: %v", err), f.Kind())
	}

	req.Header.Set("Accept", "text/plain")
	if f.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}
	if f.cfg.ReturnFormat == "markdown" {
		req.Header.Set("X-Return-Format", "markdown")
	}
	if opts.NoCache {
		req.Header.Set("X-No-Cache", "true")
	}
	if opts.TargetSelector != "" {
		req.Header.Set("X-Target-Selector", opts.TargetSelector)
	}
	if opts.WaitForSelector != "" {
		req.Header.Set("X-Wait-For-Selector", opts.WaitForSelector)
	}
	if opts.RemoveSelector != "" {
		req.Header.Set("X-Remove-Selector", opts.RemoveSelector)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return core.Failure(fmt.Sprintf("reader request failed: %v", err), f.Kind())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Failure(fmt.Sprintf("reader response read failed: %v", err), f.Kind())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(raw)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return core.Failure(
			fmt.Sprintf("reader API returned %d: %s", resp.StatusCode, excerpt),
			f.Kind())
	}

	title, sourceURL, content := parseReaderResponse(string(raw))
	if content == "" {
		return core.Failure("reader API returned empty content", f.Kind())
	}

	body := core.NewFetchedBody(rawURL, title, content)
	body.Metadata["fetcher"] = string(f.Kind())
	if f.cfg.ReturnFormat == "markdown" {
		body.Metadata["format"] = "markdown"
	}
	if sourceURL != "" {
		body.Metadata["source_url"] = sourceURL
	}

	logger.Debug("reader fetch succeeded",
		"url", rawURL, "chars", body.WordCount, "elapsed", time.Since(start))
	return core.Fetched(body, f.Kind(), time.Since(start))
}

// parseReaderResponse splits the reader's text framing from the body. The
// response may open with "Title:", "URL Source:" and "Markdown Content:"
// lines; the first line matching none of them starts the body.
func parseReaderResponse(raw string) (title, sourceURL, content string) {
	lines := strings.Split(raw, "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "Title:"):
			title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "URL Source:"):
			sourceURL = strings.TrimSpace(strings.TrimPrefix(line, "URL Source:"))
		case strings.HasPrefix(line, "Markdown Content:"):
			// Body starts on the next line.
			i++
			content = strings.TrimSpace(strings.Join(lines[i:], "\n"))
			return title, sourceURL, content
		case strings.TrimSpace(line) == "":
			continue
		default:
			content = strings.TrimSpace(strings.Join(lines[i:], "\n"))
			return title, sourceURL, content
		}
	}
	return title, sourceURL, ""
}
