package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matheuskafuri/newsintel/internal/store"
)

var flagClusterTitles int

// clusterView is one cluster as shown by the clusters command.
type clusterView struct {
	ID      string
	Summary string
	Members []store.Article
}

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List clusters with their summaries and newest articles",
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
		if len(articles) == 0 {
			fmt.Println("No clusters yet. Run `newsintel ingest` then `newsintel cluster`.")
			return nil
		}

		views := collectClusters(articles)
		ids := make([]string, len(views))
		for i, v := range views {
			ids[i] = v.ID
		}
		summaries, err := st.ClusterSummaries(ctx, ids)
		if err != nil {
			return fmt.Errorf("loading cluster summaries: %w", err)
		}
		for i := range views {
			views[i].Summary = summaries[views[i].ID]
		}

		fmt.Println(renderClusters(views, flagClusterTitles))
		return nil
	},
}

func init() {
	clustersCmd.Flags().IntVar(&flagClusterTitles, "titles", 3, "articles to show per cluster")
}

// collectClusters groups articles by label, ordered by id, members newest first.
func collectClusters(articles []store.Article) []clusterView {
	byID := make(map[string]*clusterView)
	for _, a := range articles {
		for _, id := range a.Clusters {
			v, ok := byID[id]
			if !ok {
				v = &clusterView{ID: id}
				byID[id] = v
			}
			v.Members = append(v.Members, a)
		}
	}

	out := make([]clusterView, 0, len(byID))
	for _, v := range byID {
		sort.SliceStable(v.Members, func(i, j int) bool {
			return v.Members[i].PublishedAt.After(v.Members[j].PublishedAt)
		})
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func renderClusters(views []clusterView, titles int) string {
	blocks := make([]string, 0, len(views)+1)
	blocks = append(blocks, headerStyle.Render(fmt.Sprintf("%d cluster(s)", len(views))))

	for _, v := range views {
		var b strings.Builder
		b.WriteString(clusterIDStyle.Render(v.ID))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" · %d article(s)", len(v.Members))))
		b.WriteString("\n")
		if v.Summary == "" {
			b.WriteString(pendingStyle.Render("no summary yet, run `newsintel describe`"))
		} else {
			b.WriteString(bodyStyle.Width(72).Render(v.Summary))
		}
		for i, a := range v.Members {
			if i >= titles {
				break
			}
			b.WriteString("\n  ")
			b.WriteString(truncateStr(a.Title, 60))
			b.WriteString(" " + itemSourceStyle.Render(a.Source))
			b.WriteString(dimStyle.Render(" · " + relativeTime(a.PublishedAt)))
		}
		blocks = append(blocks, clusterBoxStyle.Render(b.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}
