package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"trendwire/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Scraper    Scraper         `mapstructure:"scraper"`
	LLM        LLM             `mapstructure:"llm"`
	AIAnalysis AIAnalysis      `mapstructure:"ai_analysis"`
	Features   Features        `mapstructure:"features"`
	Categories []core.Category `mapstructure:"categories"`
	Store      Store           `mapstructure:"store"`
}

// Scraper holds the content-acquisition configuration.
type Scraper struct {
	Enabled       bool              `mapstructure:"enabled"`
	TopN          int               `mapstructure:"top_n"`
	MaxRetries    int               `mapstructure:"max_retries"`
	MaxConcurrent int               `mapstructure:"max_concurrent"`
	DomainRules   map[string]string `mapstructure:"domain_rules"` // host -> reader|browser|plain
	Methods       Methods           `mapstructure:"methods"`
}

// Methods holds per-fetcher configuration.
type Methods struct {
	Reader  ReaderMethod  `mapstructure:"reader"`
	Browser BrowserMethod `mapstructure:"browser"`
	Plain   PlainMethod   `mapstructure:"plain"`
}

// ReaderMethod configures the managed-reader fetcher.
type ReaderMethod struct {
	Enabled      bool   `mapstructure:"enabled"`
	Timeout      int    `mapstructure:"timeout"` // seconds
	APIURL       string `mapstructure:"api_url"`
	APIKey       string `mapstructure:"api_key"`
	ReturnFormat string `mapstructure:"return_format"` // text or markdown
}

// BrowserMethod configures the headless-browser fetcher.
type BrowserMethod struct {
	Enabled     bool   `mapstructure:"enabled"`
	Timeout     int    `mapstructure:"timeout"` // seconds
	Headless    bool   `mapstructure:"headless"`
	ViewportW   int    `mapstructure:"viewport_width"`
	ViewportH   int    `mapstructure:"viewport_height"`
	WaitUntil   string `mapstructure:"wait_until"`   // load, domcontentloaded, networkidle
	WaitTimeout int    `mapstructure:"wait_timeout"` // milliseconds
}

// PlainMethod configures the plain-HTTP fetcher.
type PlainMethod struct {
	Enabled   bool   `mapstructure:"enabled"`
	Timeout   int    `mapstructure:"timeout"` // seconds
	UserAgent string `mapstructure:"user_agent"`
	VerifySSL bool   `mapstructure:"verify_ssl"`
}

// LLM configures the chat-completions client.
type LLM struct {
	APIBaseURL  string  `mapstructure:"api_base_url"`
	APIKey      string  `mapstructure:"api_key"`
	ModelName   string  `mapstructure:"model_name"`
	Timeout     int     `mapstructure:"timeout"` // seconds
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
	Enabled     bool    `mapstructure:"enabled"`
}

// Timeout as a duration.
func (l LLM) TimeoutDuration() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// AIAnalysis configures the hotspot analyzer.
type AIAnalysis struct {
	Provider   string `mapstructure:"provider"` // openai, gemini, deepseek, azure
	APIKey     string `mapstructure:"api_key"`
	ModelName  string `mapstructure:"model_name"`
	APIBaseURL string `mapstructure:"api_base_url"`
	Timeout    int    `mapstructure:"timeout"` // seconds
	MaxNews    int    `mapstructure:"max_news_for_analysis"`
	IncludeRSS bool   `mapstructure:"include_rss"`
	PromptFile string `mapstructure:"prompt_file"`
	PushMode   string `mapstructure:"push_mode"`
}

// Features toggles the analyzer sub-tasks.
type Features struct {
	DailyBriefing bool `mapstructure:"daily_briefing"`
	SmartCategory bool `mapstructure:"smart_category"`
	KeyInsight    bool `mapstructure:"key_insight"`
	DeepResearch  bool `mapstructure:"deep_research"`
}

// Store configures the content cache.
type Store struct {
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Load reads configuration from the given file (or the default search path),
// applies defaults and environment overrides, and returns the result.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults + env carry a usable setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if cfgFile != "" {
				return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := newViper()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg
}

// newViper builds a viper with a :: key delimiter. The default "." delimiter
// would split dotted hostnames in scraper.domain_rules into nested maps.
func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter("::"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper::enabled", true)
	v.SetDefault("scraper::top_n", 20)
	v.SetDefault("scraper::max_retries", 2)
	v.SetDefault("scraper::max_concurrent", 5)

	v.SetDefault("scraper::methods::reader::enabled", true)
	v.SetDefault("scraper::methods::reader::timeout", 30)
	v.SetDefault("scraper::methods::reader::api_url", "https://r.jina.ai/")
	v.SetDefault("scraper::methods::reader::return_format", "text")

	v.SetDefault("scraper::methods::browser::enabled", true)
	v.SetDefault("scraper::methods::browser::timeout", 60)
	v.SetDefault("scraper::methods::browser::headless", true)
	v.SetDefault("scraper::methods::browser::viewport_width", 1280)
	v.SetDefault("scraper::methods::browser::viewport_height", 720)
	v.SetDefault("scraper::methods::browser::wait_until", "networkidle")
	v.SetDefault("scraper::methods::browser::wait_timeout", 30000)

	v.SetDefault("scraper::methods::plain::enabled", true)
	v.SetDefault("scraper::methods::plain::timeout", 30)
	v.SetDefault("scraper::methods::plain::user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper::methods::plain::verify_ssl", true)

	v.SetDefault("llm::model_name", "gpt-4o-mini")
	v.SetDefault("llm::timeout", 120)
	v.SetDefault("llm::max_tokens", 4096)
	v.SetDefault("llm::temperature", 0.7)
	v.SetDefault("llm::max_retries", 2)
	v.SetDefault("llm::enabled", true)

	v.SetDefault("ai_analysis::provider", "openai")
	v.SetDefault("ai_analysis::model_name", "gpt-4o-mini")
	v.SetDefault("ai_analysis::timeout", 90)
	v.SetDefault("ai_analysis::max_news_for_analysis", 50)
	v.SetDefault("ai_analysis::include_rss", true)
	v.SetDefault("ai_analysis::prompt_file", "ai_analysis_prompt.txt")
	v.SetDefault("ai_analysis::push_mode", "both")

	v.SetDefault("features::daily_briefing", true)
	v.SetDefault("features::smart_category", true)
	v.SetDefault("features::key_insight", true)
	v.SetDefault("features::deep_research", false)

	v.SetDefault("store::path", "data/content.db")
	v.SetDefault("store::retention_days", 7)
}

// applyEnvOverrides applies the documented environment variables on top of
// whatever the config file provided.
func applyEnvOverrides(cfg *Config) {
	if s := os.Getenv("LLM_API_BASE_URL"); s != "" {
		cfg.LLM.APIBaseURL = s
	}
	if s := os.Getenv("LLM_API_KEY"); s != "" {
		cfg.LLM.APIKey = s
	}
	if s := os.Getenv("LLM_MODEL_NAME"); s != "" {
		cfg.LLM.ModelName = s
	}
	if s := os.Getenv("AI_API_KEY"); s != "" {
		cfg.AIAnalysis.APIKey = s
	}
}
