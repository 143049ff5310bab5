package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendwire/internal/core"
)

var scrapeJSON bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url...]",
	Short: "Fetch article content for one or more URLs",
	Long: `Fetches each URL through the routed scraper. The strategy order is decided
per domain; cached URLs are served from the content store without network
work. Results print as a short summary or as JSON with --json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		results := p.ScrapeURLs(cmd.Context(), args, func(done, total int, url string, out core.FetchOutcome) {
			status := "ok"
			if !out.Success {
				status = "failed"
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", done, total, status, url)
		})

		if scrapeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		for url, out := range results {
			if out.Success {
				fmt.Printf("%s\n  fetcher=%s chars=%d title=%q\n", url, out.Kind, out.Body.WordCount, out.Body.Title)
			} else {
				fmt.Printf("%s\n  error: %s\n", url, out.Err)
			}
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "print full results as JSON")
	rootCmd.AddCommand(scrapeCmd)
}
