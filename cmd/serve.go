package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheuskafuri/newsintel/internal/chat"
	"github.com/matheuskafuri/newsintel/internal/preview"
	"github.com/matheuskafuri/newsintel/internal/server"
	"github.com/matheuskafuri/newsintel/internal/summary"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat, preview and ingest HTTP API",
	Long: `Serve the HTTP API until interrupted. When a redis queue is configured the
server also summarizes newly ingested articles in the background.`,
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

		var ingester server.Ingester
		pipeline, q, err := newPipeline(ctx, st, logger)
		if err != nil {
			logger.Warn("ingest endpoint disabled", zap.Error(err))
		} else {
			ingester = pipeline
		}
		if q != nil {
			defer q.Close()
		}

		srv := server.New(
			chat.New(st, backend, chat.Shaper{DefaultLimit: cfg.Chat.MaxArticles}, logger),
			preview.New(st, cfg.Preview.DefaultLimit),
			ingester,
			server.Options{
				Token:      cfg.Server.Token,
				PageSize:   cfg.Ingest.PageSize,
				MaxResults: cfg.Ingest.MaxResults,
			},
			logger,
		)

		addr := cfg.Server.Addr
		if flagAddr != "" {
			addr = flagAddr
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx, addr)
		})
		if q != nil {
			summarizer := summary.NewArticleSummarizer(st, backend, logger)
			g.Go(func() error {
				return summarizer.Watch(gctx, q)
			})
		}

		if err := g.Wait(); err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default from config)")
}
