package hotspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"trendwire/internal/config"
	"trendwire/internal/core"
	"trendwire/internal/logger"
)

const (
	hotspotTemperature = 0.7
	hotspotMaxTokens   = 2000
)

// presetEndpoints are the chat-completions bases used when no api_base_url
// is configured for a known provider.
var presetEndpoints = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
}

// Analyzer produces the structured hotspot trend report from hot-list and
// RSS keyword statistics. It speaks both the OpenAI-compatible and Gemini
// dialects depending on the configured provider.
type Analyzer struct {
	cfg          config.AIAnalysis
	now          func() time.Time
	systemPrompt string
	userTemplate string
}

// Request carries one analysis run's inputs.
type Request struct {
	Stats      []core.KeywordStat
	RSSStats   []core.KeywordStat
	ReportMode string // daily, current, incremental
	ReportType string // display label, e.g. 当日汇总
	Platforms  []string
	Keywords   []string
}

// New builds a hotspot analyzer. now supplies the report timestamp and
// defaults to time.Now. The prompt template is loaded from the configured
// prompt file; a missing file leaves the template empty and is logged.
func New(cfg config.AIAnalysis, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	a := &Analyzer{cfg: cfg, now: now}
	a.systemPrompt, a.userTemplate = loadPromptFile(cfg.PromptFile)
	return a
}

// loadPromptFile reads the prompt template and splits it at the [system]
// and [user] markers. Without markers the whole file is the user template.
func loadPromptFile(path string) (system, user string) {
	if path == "" {
		return "", ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("hotspot prompt file not readable", "path", path, "error", err.Error())
		return "", ""
	}
	content := string(raw)

	if strings.Contains(content, "[system]") && strings.Contains(content, "[user]") {
		parts := strings.SplitN(content, "[user]", 2)
		systemPart := parts[0]
		if idx := strings.Index(systemPart, "[system]"); idx != -1 {
			system = strings.TrimSpace(systemPart[idx+len("[system]"):])
		}
		if len(parts) > 1 {
			user = strings.TrimSpace(parts[1])
		}
		return system, user
	}
	return "", content
}

// Analyze runs one hotspot analysis. The returned report is always usable:
// transport failures set Success=false with a readable error, while a
// non-JSON model response degrades to raw text in Summary with Success=true.
func (a *Analyzer) Analyze(ctx context.Context, req Request) core.HotspotReport {
	if a.cfg.APIKey == "" {
		return core.HotspotReport{
			Success: false,
			Error:   "未配置 AI API Key，请在配置文件或环境变量 AI_API_KEY 中设置",
		}
	}

	content, hotlistTotal, rssTotal, analyzed := a.prepareNewsContent(req.Stats, req.RSSStats)
	totalNews := hotlistTotal + rssTotal

	if content == "" {
		return core.HotspotReport{
			Success:      false,
			Error:        "没有可分析的新闻内容",
			TotalNews:    totalNews,
			HotlistCount: hotlistTotal,
			RSSCount:     rssTotal,
			MaxNewsLimit: a.cfg.MaxNews,
		}
	}

	keywords := req.Keywords
	if len(keywords) == 0 {
		for _, s := range req.Stats {
			if s.Word != "" {
				keywords = append(keywords, s.Word)
			}
		}
	}
	if len(keywords) > 20 {
		keywords = keywords[:20]
	}
	platforms := "多平台"
	if len(req.Platforms) > 0 {
		platforms = strings.Join(req.Platforms, ", ")
	}
	keywordText := "无"
	if len(keywords) > 0 {
		keywordText = strings.Join(keywords, ", ")
	}

	// Literal token replacement keeps JSON braces in the template intact.
	prompt := a.userTemplate
	prompt = strings.ReplaceAll(prompt, "{report_mode}", req.ReportMode)
	prompt = strings.ReplaceAll(prompt, "{report_type}", req.ReportType)
	prompt = strings.ReplaceAll(prompt, "{current_time}", a.now().Format("2006-01-02 15:04:05"))
	prompt = strings.ReplaceAll(prompt, "{news_count}", fmt.Sprintf("%d", hotlistTotal))
	prompt = strings.ReplaceAll(prompt, "{rss_count}", fmt.Sprintf("%d", rssTotal))
	prompt = strings.ReplaceAll(prompt, "{platforms}", platforms)
	prompt = strings.ReplaceAll(prompt, "{keywords}", keywordText)
	prompt = strings.ReplaceAll(prompt, "{news_content}", content)

	raw, err := a.callAPI(ctx, prompt)
	if err != nil {
		return core.HotspotReport{Success: false, Error: a.friendlyError(err)}
	}

	report := parseResponse(raw)
	report.TotalNews = totalNews
	report.HotlistCount = hotlistTotal
	report.RSSCount = rssTotal
	report.AnalyzedNews = analyzed
	report.MaxNewsLimit = a.cfg.MaxNews
	return report
}

// prepareNewsContent renders the keyword statistics as the prompt's news
// block, truncated at max_news_for_analysis entries. Totals count all input
// titles regardless of truncation.
func (a *Analyzer) prepareNewsContent(stats, rssStats []core.KeywordStat) (content string, hotlistTotal, rssTotal, analyzed int) {
	for _, s := range stats {
		hotlistTotal += len(s.Titles)
	}
	for _, s := range rssStats {
		rssTotal += len(s.Titles)
	}

	var lines []string
	count := 0

	if len(stats) > 0 {
		lines = append(lines,
			"### 热榜新闻",
			"格式: [来源] 标题 | 排名:最高-最低 | 时间:首次~末次 | 出现:N次")
	groups:
		for _, s := range stats {
			if s.Word == "" || len(s.Titles) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("\n**%s** (%d条)", s.Word, len(s.Titles)))
			for _, t := range s.Titles {
				if t.Title == "" {
					continue
				}
				line := "- " + t.Title
				if t.Source != "" {
					line = fmt.Sprintf("- [%s] %s", t.Source, t.Title)
				}
				line += fmt.Sprintf(" | 排名:%s | 时间:%s | 出现:%d次",
					rankRange(t.Ranks), timeRange(t.FirstTime, t.LastTime), appearCount(t.Count))
				lines = append(lines, line)

				count++
				if count >= a.cfg.MaxNews {
					break groups
				}
			}
		}
	}

	if a.cfg.IncludeRSS && len(rssStats) > 0 && count < a.cfg.MaxNews {
		lines = append(lines,
			"\n### RSS 订阅",
			"格式: [来源] 标题 | 发布时间")
	rssGroups:
		for _, s := range rssStats {
			if s.Word == "" || len(s.Titles) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("\n**%s** (%d条)", s.Word, len(s.Titles)))
			for _, t := range s.Titles {
				if t.Title == "" {
					continue
				}
				line := "- " + t.Title
				if t.Source != "" {
					line = fmt.Sprintf("- [%s] %s", t.Source, t.Title)
				}
				if t.TimeDisplay != "" {
					line += " | " + t.TimeDisplay
				}
				lines = append(lines, line)

				count++
				if count >= a.cfg.MaxNews {
					break rssGroups
				}
			}
		}
	}

	return strings.Join(lines, "\n"), hotlistTotal, rssTotal, count
}

func rankRange(ranks []int) string {
	if len(ranks) == 0 {
		return "-"
	}
	min, max := ranks[0], ranks[0]
	for _, r := range ranks[1:] {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	if min == max {
		return fmt.Sprintf("%d", min)
	}
	return fmt.Sprintf("%d-%d", min, max)
}

func appearCount(count int) int {
	if count <= 0 {
		return 1
	}
	return count
}

// timeRange compresses two timestamps to HH:MM or HH:MM~HH:MM.
func timeRange(first, last string) string {
	f, l := extractClock(first), extractClock(last)
	if f == l || l == "-" {
		return f
	}
	return f + "~" + l
}

// extractClock pulls the HH:MM part out of "2026-01-04 12:30:00", "12:30"
// and similar shapes.
func extractClock(s string) string {
	if s == "" {
		return "-"
	}
	if idx := strings.Index(s, " "); idx != -1 {
		rest := s[idx+1:]
		if strings.Contains(rest, ":") {
			if len(rest) > 5 {
				return rest[:5]
			}
			return rest
		}
	} else if strings.Contains(s, ":") {
		if len(s) > 5 {
			return s[:5]
		}
		return s
	}
	if len(s) >= 5 {
		return s[:5]
	}
	return s
}

// apiBaseURL resolves the chat-completions base for the OpenAI dialect. A
// configured URL already ending in /chat/completions is honored as-is.
func (a *Analyzer) apiBaseURL() (string, error) {
	if a.cfg.APIBaseURL != "" {
		base := strings.TrimRight(a.cfg.APIBaseURL, "/")
		base = strings.TrimSuffix(base, "/chat/completions")
		return base, nil
	}
	if base, ok := presetEndpoints[a.cfg.Provider]; ok {
		return base, nil
	}
	return "", fmt.Errorf("provider %s 需要配置 api_base_url", a.cfg.Provider)
}

func (a *Analyzer) callAPI(ctx context.Context, prompt string) (string, error) {
	if a.cfg.Provider == "gemini" {
		return a.callGemini(ctx, prompt)
	}
	return a.callOpenAICompatible(ctx, prompt)
}

func (a *Analyzer) callOpenAICompatible(ctx context.Context, prompt string) (string, error) {
	base, err := a.apiBaseURL()
	if err != nil {
		return "", err
	}

	apiCfg := openai.DefaultConfig(a.cfg.APIKey)
	apiCfg.BaseURL = base
	apiCfg.HTTPClient = &http.Client{Timeout: time.Duration(a.cfg.Timeout) * time.Second}
	client := openai.NewClientWithConfig(apiCfg)

	var messages []openai.ChatCompletionMessage
	if a.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.ModelName,
		Messages:    messages,
		Temperature: hotspotTemperature,
		MaxTokens:   hotspotMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("AI 返回空响应")
	}
	return resp.Choices[0].Message.Content, nil
}

// callGemini speaks the Gemini dialect. A system prompt is emulated by a
// leading user/model turn pair, matching how the endpoint expects it.
func (a *Analyzer) callGemini(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	model := a.cfg.ModelName
	if model == "" {
		model = "gemini-1.5-flash"
	}

	var contents []*genai.Content
	if a.systemPrompt != "" {
		contents = append(contents,
			genai.NewContentFromText("System instruction: "+a.systemPrompt, genai.RoleUser),
			genai.NewContentFromText("Understood. I will follow these instructions.", genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	temperature := float32(hotspotTemperature)
	resp, err := client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: hotspotMaxTokens,
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("AI 返回空响应")
	}
	return text, nil
}

// parseResponse extracts the seven-field JSON report from the model output.
// Fenced ```json blocks are preferred, then any fenced block, then the whole
// text. A response that is not JSON still yields a usable report: the raw
// text becomes the summary and the parse error is recorded.
func parseResponse(raw string) core.HotspotReport {
	report := core.HotspotReport{RawResponse: raw}

	if strings.TrimSpace(raw) == "" {
		report.Error = "AI 返回空响应"
		return report
	}

	jsonStr := raw
	if idx := strings.Index(raw, "```json"); idx != -1 {
		block := raw[idx+len("```json"):]
		if end := strings.Index(block, "```"); end != -1 {
			jsonStr = block[:end]
		} else {
			jsonStr = block
		}
	} else if strings.Contains(raw, "```") {
		parts := strings.SplitN(raw, "```", 3)
		if len(parts) >= 2 {
			jsonStr = parts[1]
		}
	}
	jsonStr = strings.TrimSpace(jsonStr)

	var fields struct {
		Summary         string `json:"summary"`
		KeywordAnalysis string `json:"keyword_analysis"`
		Sentiment       string `json:"sentiment"`
		CrossPlatform   string `json:"cross_platform"`
		Impact          string `json:"impact"`
		Signals         string `json:"signals"`
		Conclusion      string `json:"conclusion"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		// Still usable as a plain-text report.
		report.Error = fmt.Sprintf("JSON 解析错误: %v", err)
		report.Summary = truncateRunes(raw, 1000)
		report.Success = true
		return report
	}

	report.Summary = fields.Summary
	report.KeywordAnalysis = fields.KeywordAnalysis
	report.Sentiment = fields.Sentiment
	report.CrossPlatform = fields.CrossPlatform
	report.Impact = fields.Impact
	report.Signals = fields.Signals
	report.Conclusion = fields.Conclusion
	report.Success = true
	return report
}

// friendlyError maps transport and HTTP failures to readable messages.
func (a *Analyzer) friendlyError(err error) string {
	endpoint := a.cfg.APIBaseURL
	if endpoint == "" {
		endpoint = a.cfg.Provider
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("AI API 请求超时（%d秒），请检查网络或增加超时时间", a.cfg.Timeout)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("无法连接到 AI API (%s)，请检查网络和 API 地址", endpoint)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	} else if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}
	switch status {
	case http.StatusUnauthorized:
		return "AI API 认证失败，请检查 API Key 是否正确"
	case http.StatusTooManyRequests:
		return "AI API 请求频率过高，请稍后重试"
	case http.StatusInternalServerError:
		return "AI API 服务器内部错误，请稍后重试"
	}
	if status != 0 {
		return fmt.Sprintf("AI API 返回错误 (HTTP %d): %s", status, truncateRunes(err.Error(), 100))
	}
	return fmt.Sprintf("AI 分析失败: %s", truncateRunes(err.Error(), 150))
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
