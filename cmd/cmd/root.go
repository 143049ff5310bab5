package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendwire/internal/config"
	"trendwire/internal/pipeline"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trendwire",
	Short: "Trendwire acquires article content for trending news and analyzes it with LLMs.",
	Long: `Trendwire takes hot-list and RSS items, fetches the article bodies behind
them through a routed scraper (managed reader API, plain HTTP, or a headless
browser), caches everything in SQLite, and runs LLM analyses on top:
daily briefings, smart categorization, insight extraction and structured
hotspot trend reports.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// openPipeline builds the full pipeline from config.
func openPipeline() (*pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg)
}
