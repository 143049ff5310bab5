package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendwire/internal/core"
	"trendwire/internal/hotspot"
)

var (
	hotspotInput     string
	hotspotRSSInput  string
	hotspotMode      string
	hotspotType      string
	hotspotPlatforms []string
)

var hotspotCmd = &cobra.Command{
	Use:   "hotspot",
	Short: "Generate the structured hotspot trend report",
	Long: `Reads hot-list keyword statistics (and optionally RSS statistics) from
JSON files and asks the configured AI provider for the seven-field trend
report. A model response that is not valid JSON still yields a report with
the raw text as the summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := readKeywordStats(hotspotInput)
		if err != nil {
			return err
		}
		var rssStats []core.KeywordStat
		if hotspotRSSInput != "" {
			if rssStats, err = readKeywordStats(hotspotRSSInput); err != nil {
				return err
			}
		}

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		report := p.AnalyzeHotspots(cmd.Context(), hotspot.Request{
			Stats:      stats,
			RSSStats:   rssStats,
			ReportMode: hotspotMode,
			ReportType: hotspotType,
			Platforms:  hotspotPlatforms,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func readKeywordStats(path string) ([]core.KeywordStat, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}
	var stats []core.KeywordStat
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats file: %w", err)
	}
	return stats, nil
}

func init() {
	hotspotCmd.Flags().StringVar(&hotspotInput, "input", "", "JSON file of hot-list keyword statistics (required)")
	hotspotCmd.Flags().StringVar(&hotspotRSSInput, "rss-input", "", "JSON file of RSS keyword statistics")
	hotspotCmd.Flags().StringVar(&hotspotMode, "mode", "daily", "report mode (daily, current, incremental)")
	hotspotCmd.Flags().StringVar(&hotspotType, "type", "当日汇总", "report type label")
	hotspotCmd.Flags().StringSliceVar(&hotspotPlatforms, "platforms", nil, "platform names for the prompt")
	hotspotCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(hotspotCmd)
}
