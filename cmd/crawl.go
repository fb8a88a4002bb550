package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hn-crawler/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs until interrupted.
func newCrawlCmd() *cobra.Command {
	var polls int

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Starts the crawler",
		Long: `Polls the front page on a fixed interval and crawls every post whose
folder does not exist yet. SIGINT or SIGTERM stops discovery and lets queued
work drain for up to crawler.drain_timeout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if polls < 0 {
				return fmt.Errorf("--polls must be >= 0, got %d", polls)
			}
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("polls") {
				e.cfg.Crawler.MaxPolls = polls
			}
			return runCrawl(cmd.Context(), e)
		},
	}
	cmd.Flags().IntVar(&polls, "polls", 0, "stop after this many polls (0 polls forever)")
	return cmd
}

func runCrawl(ctx context.Context, e *env) error {
	a, err := app.New(e.cfg, nil, e.logger)
	if err != nil {
		e.logger.Error("crawler setup failed", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		e.logger.Error("crawler failed", zap.Error(err))
		return err
	}
	if ctx.Err() != nil {
		e.logger.Info("interrupted, crawler stopped")
		return nil
	}
	e.logger.Info("crawl finished", zap.String("output", a.Root()))
	return nil
}
