package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/newsintel/internal/chat"
	"github.com/matheuskafuri/newsintel/internal/config"
	"github.com/matheuskafuri/newsintel/internal/store"
)

var (
	flagAskLimit   int
	flagAskCluster []string
	flagAskSource  []string
	flagAskArticle []string
	flagAskSince   string
	flagAskBodies  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the stored articles",
	Long: `Answer a question using the stored articles as context. Filters narrow the
articles the model sees; without --limit the configured chat.max_articles applies.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := askScope(time.Now())
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		backend, err := newBackend()
		if err != nil {
			return err
		}

		c := chat.New(st, backend, chat.Shaper{DefaultLimit: cfg.Chat.MaxArticles}, logger)
		reply, err := c.Answer(cmd.Context(), strings.Join(args, " "), scope)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&flagAskLimit, "limit", 0, "maximum articles given to the model")
	askCmd.Flags().StringSliceVar(&flagAskCluster, "cluster", nil, "only articles in these clusters")
	askCmd.Flags().StringSliceVar(&flagAskSource, "source", nil, "only articles from these sources")
	askCmd.Flags().StringSliceVar(&flagAskArticle, "article", nil, "only these article ids")
	askCmd.Flags().StringVar(&flagAskSince, "since", "", "only articles from the last duration (e.g., 7d, 24h)")
	askCmd.Flags().BoolVar(&flagAskBodies, "bodies", false, "include full article text in the context")
}

func askScope(now time.Time) (store.Scope, error) {
	scope := store.Scope{
		Limit:         flagAskLimit,
		ClusterIDs:    flagAskCluster,
		Sources:       flagAskSource,
		ArticleIDs:    flagAskArticle,
		IncludeBodies: flagAskBodies,
	}
	if flagAskSince != "" {
		d, err := config.ParseDuration(flagAskSince)
		if err != nil {
			return store.Scope{}, fmt.Errorf("invalid --since value: %w", err)
		}
		scope.FromDate = now.Add(-d)
	}
	return scope, nil
}
