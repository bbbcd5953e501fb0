package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/newsintel/internal/store"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached summaries of clusters that no longer exist",
	Long: `Delete cluster summaries whose id is not carried by any stored article.

Cluster ids are reused across clustering runs, so a stale summary would
otherwise describe whatever new group later receives the same id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		articles, err := st.AllClustered(ctx)
		if err != nil {
			return fmt.Errorf("loading clustered articles: %w", err)
		}
		views := collectClusters(articles)
		keep := make([]string, len(views))
		for i, v := range views {
			keep[i] = v.ID
		}

		deleted, err := st.DeleteClusterSummariesExcept(ctx, keep)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		if deleted == 0 {
			fmt.Println("Nothing to prune.")
		} else {
			fmt.Printf("Pruned %d stale cluster summary(ies).\n", deleted)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		if st.Dialect() == store.Postgres {
			fmt.Println("Store: postgres")
		} else {
			path := cfg.StorePath()
			fmt.Printf("Store: %s\n", path)
			if info, err := os.Stat(path); err == nil {
				fmt.Printf("Size: %s\n", formatBytes(info.Size()))
			}
		}
		fmt.Print(formatStats(stats))
		return nil
	},
}

func formatStats(s store.Stats) string {
	return fmt.Sprintf("Articles: %d\nEmbedded: %d\nClustered: %d\nSummarized: %d\nCluster summaries: %d\n",
		s.Articles, s.Embedded, s.Clustered, s.Summarized, s.ClusterSummaries)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
