package prompts

import (
	"fmt"
	"strings"
	"time"

	"trendwire/internal/core"
)

// Template is a named prompt pair. The user template carries {name}
// placeholders that Render substitutes literally, so JSON braces in the
// template text pass through untouched.
type Template struct {
	Name        string
	System      string
	User        string
	Description string
}

// Render substitutes {key} placeholders in the user template.
func (t Template) Render(vars map[string]string) string {
	out := t.User
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

const systemAnalyst = `你是一位专业的新闻分析师和内容编辑，擅长：
- 快速提取新闻核心信息
- 识别新闻之间的关联性
- 发现趋势和洞察
- 用简洁专业的语言进行总结

你的输出应该：
- 客观、准确、有价值
- 使用中文回复
- 格式清晰，便于阅读
`

const systemCategorizer = `你是一位专业的内容分类专家，擅长：
- 准确识别新闻主题和领域
- 理解新闻的核心内容
- 进行多维度分类

你需要将新闻准确分类到预定义的类别中。
`

const systemResearcher = `你是一位资深的研究分析师，擅长撰写专业的深度研究报告。
你的报告应该：
- 结构清晰，逻辑严谨
- 引用具体事实和数据
- 提供独立的分析观点
- 指出局限性和未解决问题
`

var defaults = []Template{
	{
		Name:        "daily_briefing",
		Description: "生成每日新闻简报",
		System:      systemAnalyst,
		User: `请根据以下今日热点新闻，生成一份专业的每日简报。

## 今日热点新闻
{news_content}

## 要求
1. 按领域分类整理（如：AI/科技、财经、社会等）
2. 每个领域写一段核心摘要（2-3句话概括重点）
3. 列出该领域的重要新闻（标题+一句话简介）
4. 最后提供3-5条今日洞察（重要趋势、关键数据、值得关注的点）

## 输出格式
使用 Markdown 格式，结构如下：

# 每日热点简报
日期：{date}

## 🔥 [领域名称] (N条)
【核心摘要】...

1. **新闻标题**
   简介...
   来源：...

## 📊 今日洞察
- 洞察1
- 洞察2
...

---
请开始生成简报：`,
	},
	{
		Name:        "categorize",
		Description: "对新闻进行智能分类",
		System:      systemCategorizer,
		User: `请将以下新闻分类到最合适的类别中。

## 新闻内容
标题：{title}
正文：{content}

## 可选类别
{categories}

## 要求
1. 选择最匹配的1-2个类别
2. 给出分类置信度（0-100）
3. 简要说明分类理由

## 输出格式（JSON）
{
    "primary_category": "类别ID",
    "secondary_category": "类别ID或null",
    "confidence": 85,
    "reason": "简要理由"
}

请输出 JSON：`,
	},
	{
		Name:        "extract_insights",
		Description: "提取新闻核心洞察",
		System:      systemAnalyst,
		User: `请分析以下新闻，提取核心洞察。

## 新闻内容
{news_content}

## 要求
1. 提取3-5条核心洞察
2. 每条洞察应该：
   - 揭示重要趋势或规律
   - 包含关键数据或事实
   - 具有前瞻性或警示意义
3. 语言简洁，每条不超过50字

## 输出格式
1. [领域] 洞察内容
2. [领域] 洞察内容
...

请提取洞察：`,
	},
	{
		Name:        "summarize",
		Description: "生成新闻摘要",
		System:      systemAnalyst,
		User: `请为以下新闻生成简洁的摘要。

## 新闻内容
标题：{title}
正文：{content}

## 要求
1. 摘要长度：50-100字
2. 保留核心信息：谁、什么、何时、为什么
3. 语言客观简洁

请输出摘要：`,
	},
	{
		Name:        "deep_research",
		Description: "生成深度研究报告",
		System:      systemResearcher,
		User: `请根据以下新闻和相关信息，生成一份深度研究报告。

## 主题
{topic}

## 相关新闻
{news_content}

## 报告结构要求

### 1. 摘要
- 3-5个核心要点
- 每个要点带来源标注

### 2. 背景
- 主题背景介绍
- 为什么这个话题重要

### 3. 深度分析
- 分多个维度详细分析
- 包含具体数据和事实
- 引用多个来源

### 4. 结论与建议
- 核心结论
- 可行建议
- 未解决的问题

### 5. 数据与引用
- 列出所有引用来源

## 输出格式
使用 Markdown 格式，包含清晰的标题层级。

日期：{date}

请开始撰写报告：`,
	},
	{
		Name:        "batch_categorize",
		Description: "批量分类多条新闻",
		System:      systemCategorizer,
		User: `请将以下新闻列表分类到对应类别。

## 新闻列表
{news_list}

## 可选类别
{categories}

## 要求
1. 为每条新闻选择最匹配的类别
2. 输出 JSON 格式

## 输出格式
[
    {"id": 1, "category": "类别ID"},
    {"id": 2, "category": "类别ID"},
    ...
]

请输出分类结果：`,
	},
}

// Registry holds named prompt templates, seeded with the built-in set.
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry with the default templates loaded.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]Template, len(defaults))}
	for _, t := range defaults {
		r.templates[t.Name] = t
	}
	return r
}

// Get returns the named template.
func (r *Registry) Get(name string) (Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Add registers or replaces a template under its name.
func (r *Registry) Add(t Template) {
	r.templates[t.Name] = t
}

// List returns the names of all registered templates.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

// DailyBriefing renders the daily-briefing prompt pair. An empty date
// defaults to today in Chinese date format.
func (r *Registry) DailyBriefing(items []core.RankedItem, date string) (system, user string) {
	if date == "" {
		date = time.Now().Format("2006年01月02日")
	}
	t := r.templates["daily_briefing"]
	return t.System, t.Render(map[string]string{
		"news_content": formatNewsList(items, false),
		"date":         date,
	})
}

// Categorize renders the single-item classification prompt pair. Content is
// truncated to 2000 characters.
func (r *Registry) Categorize(title, content string, categories []core.Category) (system, user string) {
	t := r.templates["categorize"]
	return t.System, t.Render(map[string]string{
		"title":      title,
		"content":    truncate(content, 2000),
		"categories": formatCategories(categories),
	})
}

// Insights renders the insight-extraction prompt pair.
func (r *Registry) Insights(items []core.RankedItem) (system, user string) {
	t := r.templates["extract_insights"]
	return t.System, t.Render(map[string]string{
		"news_content": formatNewsList(items, false),
	})
}

// Summarize renders the summary prompt pair. Content is truncated to 3000
// characters.
func (r *Registry) Summarize(title, content string) (system, user string) {
	t := r.templates["summarize"]
	return t.System, t.Render(map[string]string{
		"title":   title,
		"content": truncate(content, 3000),
	})
}

// DeepResearch renders the research-report prompt pair with detailed news
// formatting. An empty date defaults to today.
func (r *Registry) DeepResearch(topic string, items []core.RankedItem, date string) (system, user string) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	t := r.templates["deep_research"]
	return t.System, t.Render(map[string]string{
		"topic":        topic,
		"news_content": formatNewsList(items, true),
		"date":         date,
	})
}

// formatNewsList renders items as numbered entries. Detailed mode carries up
// to 1000 characters of body text per item; simple mode a 200-character
// preview under the title line.
func formatNewsList(items []core.RankedItem, detailed bool) string {
	var lines []string
	for i, item := range items {
		title := item.Title
		if title == "" {
			title = "无标题"
		}
		source := item.Source
		if source == "" {
			source = "未知来源"
		}

		if detailed {
			lines = append(lines,
				fmt.Sprintf("### %d. %s", i+1, title),
				fmt.Sprintf("来源：%s", source),
				fmt.Sprintf("内容：%s", truncate(item.Content, 1000)),
				"")
		} else {
			lines = append(lines, fmt.Sprintf("%d. **%s** (%s)", i+1, title, source))
			if item.Content != "" {
				preview := truncate(item.Content, 200)
				if preview != item.Content {
					preview += "..."
				}
				lines = append(lines, "   "+preview)
			}
			lines = append(lines, "")
		}
	}
	return strings.Join(lines, "\n")
}

// formatCategories renders the classification targets, showing at most five
// keywords each.
func formatCategories(categories []core.Category) string {
	var lines []string
	for _, cat := range categories {
		keywords := cat.Keywords
		if len(keywords) > 5 {
			keywords = keywords[:5]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (关键词: %s)",
			cat.ID, cat.Name, strings.Join(keywords, ", ")))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
