package prompts

import (
	"strings"
	"testing"

	"trendwire/internal/core"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{
		"daily_briefing", "categorize", "extract_insights",
		"summarize", "deep_research", "batch_categorize",
	} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("default template %q missing", name)
		}
	}
	if len(r.List()) != 6 {
		t.Errorf("List() = %d templates, want 6", len(r.List()))
	}
}

func TestAddOverridesTemplate(t *testing.T) {
	r := NewRegistry()
	r.Add(Template{Name: "summarize", User: "custom {title}"})
	got, _ := r.Get("summarize")
	if got.User != "custom {title}" {
		t.Errorf("Add() did not replace template")
	}
}

func TestRenderPreservesJSONBraces(t *testing.T) {
	r := NewRegistry()
	_, user := r.Categorize("标题", "正文", []core.Category{{ID: "tech", Name: "科技"}})
	if !strings.Contains(user, `"primary_category": "类别ID"`) {
		t.Errorf("JSON example braces mangled:\n%s", user)
	}
	if strings.Contains(user, "{title}") || strings.Contains(user, "{content}") {
		t.Error("placeholders left unsubstituted")
	}
}

func TestCategorizeTruncatesContent(t *testing.T) {
	r := NewRegistry()
	long := strings.Repeat("长", 2500)
	_, user := r.Categorize("t", long, nil)
	if strings.Contains(user, strings.Repeat("长", 2001)) {
		t.Error("content not truncated to 2000 characters")
	}
	if !strings.Contains(user, strings.Repeat("长", 2000)) {
		t.Error("truncation cut below 2000 characters")
	}
}

func TestCategoriesFormatting(t *testing.T) {
	r := NewRegistry()
	cats := []core.Category{{
		ID:       "tech",
		Name:     "科技",
		Keywords: []string{"a", "b", "c", "d", "e", "f", "g"},
	}}
	_, user := r.Categorize("t", "c", cats)
	if !strings.Contains(user, "- tech: 科技 (关键词: a, b, c, d, e)") {
		t.Errorf("category line malformed:\n%s", user)
	}
	if strings.Contains(user, "f") && strings.Contains(user, ", f") {
		t.Error("more than five keywords rendered")
	}
}

func TestNewsListSimpleFormat(t *testing.T) {
	items := []core.RankedItem{
		{Title: "新闻一", Source: "微博", Content: strings.Repeat("内", 250)},
		{Title: "新闻二", Source: "知乎"},
	}
	got := formatNewsList(items, false)
	if !strings.Contains(got, "1. **新闻一** (微博)") {
		t.Errorf("simple format title line wrong:\n%s", got)
	}
	if !strings.Contains(got, strings.Repeat("内", 200)+"...") {
		t.Error("long preview not truncated with ellipsis")
	}
	if !strings.Contains(got, "2. **新闻二** (知乎)") {
		t.Error("second item missing")
	}
}

func TestNewsListDetailedFormat(t *testing.T) {
	items := []core.RankedItem{{Title: "新闻一", Source: "微博", Content: strings.Repeat("内", 1200)}}
	got := formatNewsList(items, true)
	if !strings.Contains(got, "### 1. 新闻一") {
		t.Errorf("detailed header wrong:\n%s", got)
	}
	if !strings.Contains(got, "来源：微博") {
		t.Error("source line missing")
	}
	if strings.Contains(got, strings.Repeat("内", 1001)) {
		t.Error("detailed content not truncated to 1000 characters")
	}
}

func TestNewsListPlaceholders(t *testing.T) {
	got := formatNewsList([]core.RankedItem{{}}, false)
	if !strings.Contains(got, "无标题") || !strings.Contains(got, "未知来源") {
		t.Errorf("missing fallbacks for empty item:\n%s", got)
	}
}

func TestDailyBriefingDate(t *testing.T) {
	r := NewRegistry()
	_, user := r.DailyBriefing(nil, "2026年08月24日")
	if !strings.Contains(user, "日期：2026年08月24日") {
		t.Errorf("date not substituted:\n%s", user)
	}
}
