package fetch

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"trendwire/internal/core"
)

// Fetcher retrieves the article body behind one URL using a single strategy.
// Implementations return a failed outcome rather than panicking; the Router
// decides whether to fall through to another strategy.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) core.FetchOutcome
	Kind() core.FetcherKind
}

// promoPatterns matches boilerplate lines that Chinese news portals inject
// around article bodies (share bars, follow prompts, related-reading blocks).
var promoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`分享到(微信|微博|QQ|朋友圈)`),
	regexp.MustCompile(`点击(关注|订阅|收藏)`),
	regexp.MustCompile(`扫码关注`),
	regexp.MustCompile(`广告$`),
	regexp.MustCompile(`^相关(推荐|阅读|文章)`),
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// cleanContent collapses runs of blank lines and drops promotional
// boilerplate lines. It never touches lines inside paragraphs.
func cleanContent(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		promo := false
		for _, p := range promoPatterns {
			if p.MatchString(trimmed) {
				promo = true
				break
			}
		}
		if promo {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	out := strings.Join(kept, "\n")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// domainOf returns the lowercased host of rawURL without any port.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// domainMatches reports whether domain equals entry or is a subdomain of it.
func domainMatches(domain, entry string) bool {
	entry = strings.ToLower(entry)
	return domain == entry || strings.HasSuffix(domain, "."+entry)
}
