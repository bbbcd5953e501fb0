package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagPageSize   int
	flagMaxResults int
	flagJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch new articles from the configured feed",
	Long: `Page through the configured feed, newest first, until an article at or before
the most recently stored one is reached. New articles are enriched with
keywords and an embedding before they are stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		p, q, err := newPipeline(ctx, st, logger)
		if err != nil {
			return err
		}
		if q != nil {
			defer q.Close()
		}

		pageSize := cfg.Ingest.PageSize
		if flagPageSize > 0 {
			pageSize = flagPageSize
		}
		maxResults := cfg.Ingest.MaxResults
		if flagMaxResults > 0 {
			maxResults = flagMaxResults
		}

		stats, err := p.Run(ctx, pageSize, maxResults)
		if err != nil {
			return fmt.Errorf("ingesting: %w", err)
		}

		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		fmt.Printf("%s %d new article(s) from %d page(s)\n", successStyle.Render("ingested"), stats.Stored, stats.Pages)
		fmt.Println(dimStyle.Render(fmt.Sprintf("fetched %d · duplicate %d · invalid %d · failed %d",
			stats.Fetched, stats.Duplicate, stats.Invalid, stats.Failed)))
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "articles per feed page (default from config)")
	ingestCmd.Flags().IntVar(&flagMaxResults, "max-results", 0, "stop after this many stored articles (default from config)")
	ingestCmd.Flags().BoolVar(&flagJSON, "json", false, "print run statistics as JSON")
}
