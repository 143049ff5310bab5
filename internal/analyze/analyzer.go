package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/llm"
	"trendwire/internal/logger"
	"trendwire/internal/prompts"
)

const (
	categorizeTemperature = 0.3
	researchTemperature   = 0.5
	researchMaxTokens     = 8000
	summaryMaxTokens      = 200
	categorizeConcurrency = 3
	categorizeBatchSize   = 10
	maxInsights           = 5
)

// Analyzer drives the per-item and corpus-level LLM analysis tasks.
// Every task degrades to an empty result when the client is unavailable.
type Analyzer struct {
	client     *llm.Client
	registry   *prompts.Registry
	features   config.Features
	categories []core.Category
}

// New builds an analyzer over the given client and config.
func New(client *llm.Client, cfg *config.Config) *Analyzer {
	return &Analyzer{
		client:     client,
		registry:   prompts.NewRegistry(),
		features:   cfg.Features,
		categories: cfg.Categories,
	}
}

// IsAvailable reports whether the underlying client can make calls.
func (a *Analyzer) IsAvailable() bool {
	return a.client.IsAvailable()
}

// DailyBriefing generates the Markdown daily briefing over the given items.
func (a *Analyzer) DailyBriefing(ctx context.Context, items []core.RankedItem, date string) (string, error) {
	if !a.IsAvailable() {
		return "", llm.ErrNotConfigured
	}
	if len(items) == 0 {
		return "", errors.New("no news items to brief")
	}

	system, user := a.registry.DailyBriefing(items, date)
	resp, err := a.Chat(ctx, system, user, -1, 0)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Categorize classifies one item against the configured categories. A nil
// result with nil error means classification was skipped or unparseable.
func (a *Analyzer) Categorize(ctx context.Context, title, content, itemID string) (*core.CategoryResult, error) {
	if !a.IsAvailable() || len(a.categories) == 0 {
		return nil, nil
	}

	system, user := a.registry.Categorize(title, content, a.categories)
	resp, err := a.Chat(ctx, system, user, categorizeTemperature, 0)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Primary    string `json:"primary_category"`
		Secondary  string `json:"secondary_category"`
		Confidence int    `json:"confidence"`
		Reason     string `json:"reason"`
	}
	raw := extractJSON(resp.Content)
	if raw == "" {
		logger.Warn("categorize response carried no JSON", "item", itemID)
		return nil, nil
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger.Warn("categorize response unparseable", "item", itemID, "error", err.Error())
		return nil, nil
	}

	return &core.CategoryResult{
		ItemID:     itemID,
		Primary:    parsed.Primary,
		Secondary:  parsed.Secondary,
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}, nil
}

// CategorizeMany classifies items with bounded concurrency, keeping input
// order in the result and dropping items that failed or were skipped.
func (a *Analyzer) CategorizeMany(ctx context.Context, items []core.RankedItem) []core.CategoryResult {
	if !a.IsAvailable() || len(a.categories) == 0 {
		return nil
	}

	slots := make([]*core.CategoryResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(categorizeConcurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			id := item.ID
			if id == "" {
				id = uuid.NewString()
			}
			result, err := a.Categorize(gctx, item.Title, item.Content, id)
			if err != nil {
				logger.Error("categorize failed", err, "item", id)
				return nil
			}
			slots[i] = result
			return nil
		})
	}
	_ = g.Wait()

	results := make([]core.CategoryResult, 0, len(items))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// ExtractInsights pulls up to five tagged insights from the corpus.
func (a *Analyzer) ExtractInsights(ctx context.Context, items []core.RankedItem) ([]core.Insight, error) {
	if !a.IsAvailable() || len(items) == 0 {
		return nil, nil
	}

	system, user := a.registry.Insights(items)
	resp, err := a.Chat(ctx, system, user, -1, 0)
	if err != nil {
		return nil, err
	}
	return parseInsights(resp.Content), nil
}

// Summarize produces a short summary of one item.
func (a *Analyzer) Summarize(ctx context.Context, title, content, itemID string) (*core.NewsSummary, error) {
	if !a.IsAvailable() {
		return nil, llm.ErrNotConfigured
	}

	system, user := a.registry.Summarize(title, content)
	resp, err := a.Chat(ctx, system, user, -1, summaryMaxTokens)
	if err != nil {
		return nil, err
	}
	return &core.NewsSummary{
		ItemID:  itemID,
		Title:   title,
		Summary: strings.TrimSpace(resp.Content),
	}, nil
}

// DeepResearch generates a long-form research report on topic.
func (a *Analyzer) DeepResearch(ctx context.Context, topic string, items []core.RankedItem, date string) (string, error) {
	if !a.IsAvailable() {
		return "", llm.ErrNotConfigured
	}
	if len(items) == 0 {
		return "", errors.New("no news items for research")
	}

	system, user := a.registry.DeepResearch(topic, items, date)
	resp, err := a.Chat(ctx, system, user, researchTemperature, researchMaxTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// AnalyzeFull runs the feature-enabled tasks concurrently over items. A
// failed sub-task leaves its field empty; the run still succeeds.
func (a *Analyzer) AnalyzeFull(ctx context.Context, items []core.RankedItem, date string) core.AnalysisResult {
	if !a.IsAvailable() {
		return core.AnalysisFailure("llm client not available")
	}
	if len(items) == 0 {
		return core.AnalysisFailure("no news items to analyze")
	}

	result := core.AnalysisResult{
		Success:     true,
		GeneratedAt: time.Now().Format(time.RFC3339),
		ModelUsed:   a.client.ModelName(),
	}

	var wg sync.WaitGroup
	if a.features.DailyBriefing {
		wg.Add(1)
		go func() {
			defer wg.Done()
			briefing, err := a.DailyBriefing(ctx, items, date)
			if err != nil {
				logger.Error("daily briefing failed", err)
				return
			}
			result.DailyBriefing = briefing
		}()
	}
	if a.features.KeyInsight {
		wg.Add(1)
		go func() {
			defer wg.Done()
			insights, err := a.ExtractInsights(ctx, items)
			if err != nil {
				logger.Error("insight extraction failed", err)
				return
			}
			result.Insights = insights
		}()
	}
	if a.features.SmartCategory {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := items
			if len(batch) > categorizeBatchSize {
				batch = batch[:categorizeBatchSize]
			}
			result.Categories = a.CategorizeMany(ctx, batch)
		}()
	}
	wg.Wait()

	result.TokenUsage = a.client.GetStats().TotalUsage
	return result
}

// Chat is the shared two-message completion helper.
func (a *Analyzer) Chat(ctx context.Context, system, user string, temperature float32, maxTokens int) (*llm.ChatResponse, error) {
	return a.client.Chat(ctx, []llm.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, temperature, maxTokens)
}

// AnalyzerStats summarizes analyzer configuration and client state.
type AnalyzerStats struct {
	Available  bool            `json:"available"`
	Features   config.Features `json:"features"`
	Categories int             `json:"categories_count"`
	Client     llm.Stats       `json:"client"`
}

// Stats reports the analyzer's feature toggles and client usage.
func (a *Analyzer) Stats() AnalyzerStats {
	return AnalyzerStats{
		Available:  a.IsAvailable(),
		Features:   a.features,
		Categories: len(a.categories),
		Client:     a.client.GetStats(),
	}
}

var innerObject = regexp.MustCompile(`\{[^{}]*\}`)

// extractJSON returns text itself when it parses as JSON, otherwise the
// first innermost braced object found inside it, otherwise "".
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}
	if m := innerObject.FindString(text); m != "" && json.Valid([]byte(m)) {
		return m
	}
	return ""
}

var insightTag = regexp.MustCompile(`(?:\d+\.\s*|-\s*)\[([^\]]+)\]\s*`)
var listPrefix = regexp.MustCompile(`^[\d.\-•\s]+`)
var numberedLine = regexp.MustCompile(`^\d+\.`)

// parseInsights reads "1. [domain] content" or "- [domain] content" entries;
// when none match, plain list lines are kept under the catch-all domain.
// At most five insights are returned.
func parseInsights(text string) []core.Insight {
	var insights []core.Insight

	matches := insightTag.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		domain := strings.TrimSpace(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[m[1]:end])
		if content != "" {
			insights = append(insights, core.Insight{Domain: domain, Content: content})
		}
	}

	if len(insights) == 0 {
		for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") && !numberedLine.MatchString(line) {
				continue
			}
			content := strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
			if content != "" {
				insights = append(insights, core.Insight{Domain: "综合", Content: content})
			}
		}
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}
