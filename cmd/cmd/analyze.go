package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendwire/internal/core"
)

var (
	analyzeInput string
	analyzeDate  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full LLM analysis over a news item file",
	Long: `Reads ranked news items from a JSON file, enriches them with article
content through the scraper, and runs the enabled analysis tasks (daily
briefing, smart categorization, insight extraction). The result prints as
JSON on stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(analyzeInput)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		var items []core.RankedItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("failed to parse input file: %w", err)
		}

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		result := p.Analyze(cmd.Context(), items, analyzeDate)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "JSON file of news items (required)")
	analyzeCmd.Flags().StringVar(&analyzeDate, "date", "", "report date label (default today)")
	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}
