package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/newsintel/internal/summary"
)

var (
	flagSummarizeLimit int
	flagWatch          bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize articles that have no summary yet",
	Long: `Summarize up to --limit stored articles that lack a summary.

With --watch, consume article ids from the redis queue that ingest pushes to
and summarize each as it arrives, until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		backend, err := newBackend()
		if err != nil {
			return err
		}
		s := summary.NewArticleSummarizer(st, backend, logger)

		if flagWatch {
			q, err := openQueue(ctx)
			if err != nil {
				return err
			}
			if q == nil {
				return errors.New("--watch needs queue.redis_addr or REDIS_ADDR")
			}
			defer q.Close()
			if err := s.Watch(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watching queue: %w", err)
			}
			return nil
		}

		limit := cfg.Summarize.BatchSize
		if flagSummarizeLimit > 0 {
			limit = flagSummarizeLimit
		}
		res, err := s.Run(ctx, limit)
		if err != nil {
			return fmt.Errorf("summarizing: %w", err)
		}
		printResult("article", res)
		return nil
	},
}

func init() {
	summarizeCmd.Flags().IntVar(&flagSummarizeLimit, "limit", 0, "maximum articles to summarize (default from config)")
	summarizeCmd.Flags().BoolVar(&flagWatch, "watch", false, "consume the summary queue until interrupted")
}
