package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/newsintel/internal/cluster"
	"github.com/matheuskafuri/newsintel/internal/summary"
)

var (
	flagMaxK  int
	flagPrune bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group embedded articles into topic clusters",
	Long: `Partition every article with an embedding into at most --max-k clusters and
replace each article's cluster labels with the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		maxK := cfg.Clustering.MaxK
		if flagMaxK > 0 {
			maxK = flagMaxK
		}
		prune := cfg.Clustering.PruneStaleSummaries || flagPrune

		n, err := cluster.New(st, maxK, logger).WithPruning(prune).Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("clustering: %w", err)
		}
		if n == 0 {
			fmt.Println("No embedded articles to cluster.")
			return nil
		}
		fmt.Printf("%s articles into %d cluster(s)\n", successStyle.Render("grouped"), n)
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Write an LLM summary for every cluster that lacks one",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		backend, err := newBackend()
		if err != nil {
			return err
		}

		res, err := summary.NewClusterSummarizer(st, backend, logger).Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("describing clusters: %w", err)
		}
		printResult("cluster", res)
		return nil
	},
}

func init() {
	clusterCmd.Flags().IntVar(&flagMaxK, "max-k", 0, "maximum number of clusters (default from config)")
	clusterCmd.Flags().BoolVar(&flagPrune, "prune", false, "delete cached summaries of clusters that no longer exist")
}

func printResult(noun string, res summary.Result) {
	fmt.Printf("%s %d %s summary(ies)\n", successStyle.Render("created"), res.Created, noun)
	if res.Skipped > 0 || res.Failed > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("skipped %d · failed %d", res.Skipped, res.Failed)))
	}
}
