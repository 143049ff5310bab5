package core

import (
	"time"
	"unicode/utf8"
)

// FetcherKind identifies which fetch strategy produced a result.
type FetcherKind string

const (
	KindReader  FetcherKind = "reader"  // managed text-extraction API
	KindBrowser FetcherKind = "browser" // headless browser rendering
	KindPlain   FetcherKind = "plain"   // plain HTTP + readability extraction
)

// RankedItem is a hot-list or RSS entry produced by the upstream collectors.
// It is immutable after ingestion; Content is filled in by the enrichment
// pipeline from the ContentStore.
type RankedItem struct {
	ID              string `json:"id"`               // Unique identifier for the item
	Title           string `json:"title"`            // Item title
	URL             string `json:"url"`              // Item URL
	Source          string `json:"source"`           // Source platform name
	FirstSeen       string `json:"first_seen"`       // First time seen on a hot list
	LastSeen        string `json:"last_seen"`        // Last time seen on a hot list
	Ranks           []int  `json:"ranks"`            // Observed hot-list positions
	AppearanceCount int    `json:"appearance_count"` // Number of crawls the item appeared in
	FeedTime        string `json:"feed_time"`        // Publish time display for RSS items (optional)
	Content         string `json:"content"`          // Article body filled in by enrichment (optional)
}

// FetchedBody is the extracted article content for a single URL.
type FetchedBody struct {
	URL         string            `json:"url"`          // Original URL (unique in the store)
	Title       string            `json:"title"`        // Article title
	Content     string            `json:"content"`      // Body text (plain text)
	HTMLExcerpt string            `json:"html_excerpt"` // First 10 KB of the raw HTML (optional)
	Author      string            `json:"author"`       // Author name (optional)
	PublishTime *time.Time        `json:"publish_time"` // Publish time, nil if unknown
	WordCount   int               `json:"word_count"`   // Code points in Content, fixed at construction
	Images      []string          `json:"images"`       // Up to 10 article image URLs
	Metadata    map[string]string `json:"metadata"`     // Fetcher metadata (fetcher kind, format)
	FetchedAt   time.Time         `json:"fetched_at"`   // When the body was fetched
	ExpiresAt   time.Time         `json:"expires_at"`   // TTL boundary; zero means no expiry
}

// NewFetchedBody builds a FetchedBody and derives WordCount from the content.
// The count is never recomputed on read.
func NewFetchedBody(url, title, content string) *FetchedBody {
	return &FetchedBody{
		URL:       url,
		Title:     title,
		Content:   content,
		WordCount: utf8.RuneCountInString(content),
		Metadata:  map[string]string{},
	}
}

// FetchOutcome is the result of one routed fetch attempt. Exactly one of
// Body (success) or Err (failure) is meaningful.
type FetchOutcome struct {
	Success bool          `json:"success"`
	Body    *FetchedBody  `json:"body,omitempty"`
	Err     string        `json:"error,omitempty"`
	Kind    FetcherKind   `json:"fetcher_kind"`
	Elapsed time.Duration `json:"elapsed"`
}

// Failure builds a failed outcome carrying the producing fetcher's kind.
func Failure(err string, kind FetcherKind) FetchOutcome {
	return FetchOutcome{Success: false, Err: err, Kind: kind}
}

// Fetched builds a successful outcome.
func Fetched(body *FetchedBody, kind FetcherKind, elapsed time.Duration) FetchOutcome {
	return FetchOutcome{Success: true, Body: body, Kind: kind, Elapsed: elapsed}
}

// Category is a config-supplied classification target.
type Category struct {
	ID       string   `mapstructure:"id" json:"id"`
	Name     string   `mapstructure:"name" json:"name"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// CategoryResult is the model's classification of one item.
type CategoryResult struct {
	ItemID     string `json:"item_id"`
	Primary    string `json:"primary_category"`
	Secondary  string `json:"secondary_category,omitempty"`
	Confidence int    `json:"confidence"` // 0-100
	Reason     string `json:"reason"`
}

// Insight is a tagged short claim extracted from the corpus.
type Insight struct {
	Domain     string `json:"domain"`
	Content    string `json:"content"`
	Importance int    `json:"importance,omitempty"` // 1-5, optional
}

// NewsSummary is a one-item summary.
type NewsSummary struct {
	ItemID  string `json:"item_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// TokenUsage mirrors the chat-completions usage block.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnalysisResult aggregates the outputs of a full analyzer run. Sub-task
// failures leave the corresponding field empty without affecting the others.
type AnalysisResult struct {
	Success       bool             `json:"success"`
	DailyBriefing string           `json:"daily_briefing"`
	Categories    []CategoryResult `json:"categories"`
	Insights      []Insight        `json:"insights"`
	Summaries     []NewsSummary    `json:"summaries"`
	DeepResearch  string           `json:"deep_research"`
	GeneratedAt   string           `json:"generated_at"`
	ModelUsed     string           `json:"model_used"`
	TokenUsage    TokenUsage       `json:"token_usage"`
	Error         string           `json:"error,omitempty"`
}

// AnalysisFailure builds a failed result.
func AnalysisFailure(err string) AnalysisResult {
	return AnalysisResult{Success: false, Error: err}
}

// StatTitle is one title inside a hot-list keyword group.
type StatTitle struct {
	Title       string `json:"title"`
	Source      string `json:"source_name"`
	Ranks       []int  `json:"ranks"`
	FirstTime   string `json:"first_time"`
	LastTime    string `json:"last_time"`
	Count       int    `json:"count"`
	TimeDisplay string `json:"time_display"` // RSS publish time display
}

// KeywordStat groups hot-list titles under a trending keyword.
type KeywordStat struct {
	Word   string      `json:"word"`
	Titles []StatTitle `json:"titles"`
}

// HotspotReport is the seven-field structured hotspot analysis.
//
// When the model's response is not valid JSON the analyzer still reports
// Success=true with the raw text in Summary and the parse error in Error;
// consumers must check Error independently.
type HotspotReport struct {
	Summary         string `json:"summary"`
	KeywordAnalysis string `json:"keyword_analysis"`
	Sentiment       string `json:"sentiment"`
	CrossPlatform   string `json:"cross_platform"`
	Impact          string `json:"impact"`
	Signals         string `json:"signals"`
	Conclusion      string `json:"conclusion"`
	RawResponse     string `json:"raw_response"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	TotalNews       int    `json:"total_news"`
	AnalyzedNews    int    `json:"analyzed_news"`
	MaxNewsLimit    int    `json:"max_news_limit"`
	HotlistCount    int    `json:"hotlist_count"`
	RSSCount        int    `json:"rss_count"`
}

// StoreStats summarizes the content store.
type StoreStats struct {
	TotalRecords  int   `json:"total_records"`
	TodayAdded    int   `json:"today_added"`
	DBSizeBytes   int64 `json:"db_size_bytes"`
	RetentionDays int   `json:"retention_days"`
}
