package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/newsintel/internal/config"
	"github.com/matheuskafuri/newsintel/internal/preview"
	"github.com/matheuskafuri/newsintel/internal/store"
)

var (
	flagPreviewLimit   int
	flagPreviewCluster []string
	flagPreviewSource  []string
	flagPreviewSince   string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print stored articles as JSON",
	Long: `Print the newest stored articles as JSON, with each cluster label resolved to
its summary. Embeddings are never included.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := store.Scope{
			Limit:      flagPreviewLimit,
			ClusterIDs: flagPreviewCluster,
			Sources:    flagPreviewSource,
		}
		if flagPreviewSince != "" {
			d, err := config.ParseDuration(flagPreviewSince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			scope.FromDate = time.Now().Add(-d)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		previews, err := preview.New(st, cfg.Preview.DefaultLimit).Fetch(cmd.Context(), scope)
		if err != nil {
			return fmt.Errorf("fetching preview: %w", err)
		}
		if previews == nil {
			previews = []preview.ArticlePreview{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(previews)
	},
}

func init() {
	previewCmd.Flags().IntVar(&flagPreviewLimit, "limit", 0, "maximum articles (default from config)")
	previewCmd.Flags().StringSliceVar(&flagPreviewCluster, "cluster", nil, "only articles in these clusters")
	previewCmd.Flags().StringSliceVar(&flagPreviewSource, "source", nil, "only articles from these sources")
	previewCmd.Flags().StringVar(&flagPreviewSince, "since", "", "only articles from the last duration (e.g., 7d, 24h)")
}
