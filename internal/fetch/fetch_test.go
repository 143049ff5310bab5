package fetch

import (
	"strings"
	"testing"
)

func TestCleanContentDropsPromoLines(t *testing.T) {
	in := strings.Join([]string{
		"正文第一段。",
		"分享到微信",
		"正文第二段。",
		"点击关注我们",
		"扫码关注公众号",
		"相关推荐",
		"这是广告",
		"正文第三段。",
	}, "\n")

	got := cleanContent(in)
	for _, banned := range []string{"分享到", "点击关注", "扫码关注", "相关推荐", "广告"} {
		if strings.Contains(got, banned) {
			t.Errorf("cleanContent kept promo text %q in %q", banned, got)
		}
	}
	for _, want := range []string{"正文第一段。", "正文第二段。", "正文第三段。"} {
		if !strings.Contains(got, want) {
			t.Errorf("cleanContent dropped body text %q", want)
		}
	}
}

func TestCleanContentKeepsMidlineAd(t *testing.T) {
	// 广告 only matches at end of line; mid-sentence mentions survive.
	got := cleanContent("这则广告引发了讨论。")
	if got != "这则广告引发了讨论。" {
		t.Errorf("cleanContent = %q", got)
	}
}

func TestCleanContentCollapsesBlankRuns(t *testing.T) {
	got := cleanContent("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("cleanContent = %q, want %q", got, "a\n\nb")
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://News.Sina.com.cn/article/1", "news.sina.com.cn"},
		{"http://example.com:8080/x", "example.com"},
		{"https://m.weibo.cn/status/5", "m.weibo.cn"},
	}
	for _, tt := range tests {
		if got := domainOf(tt.url); got != tt.want {
			t.Errorf("domainOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDomainMatches(t *testing.T) {
	if !domainMatches("weibo.com", "weibo.com") {
		t.Error("exact match failed")
	}
	if !domainMatches("s.weibo.com", "weibo.com") {
		t.Error("subdomain match failed")
	}
	if domainMatches("notweibo.com", "weibo.com") {
		t.Error("suffix without dot boundary must not match")
	}
}
