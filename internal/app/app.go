// Package app builds the crawler's long-lived services from configuration
// and runs them.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/hn-crawler/internal/api"
	"github.com/JakeFAU/hn-crawler/internal/clock/system"
	"github.com/JakeFAU/hn-crawler/internal/config"
	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/discovery"
	"github.com/JakeFAU/hn-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/hn-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/hn-crawler/internal/id/uuid"
	"github.com/JakeFAU/hn-crawler/internal/queue/memory"
	"github.com/JakeFAU/hn-crawler/internal/storage/local"
	"github.com/JakeFAU/hn-crawler/internal/worker"
)

// App holds the wired pipeline and the optional ops server.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *local.PageStore
	dispatcher *dispatcher.Dispatcher
	server     *api.Server
}

// New wires every component. fs may be nil to use the OS filesystem.
// It fails fast when the output folder is unusable.
func New(cfg config.Config, fs afero.Fs, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := local.New(local.Config{RootDir: cfg.Output.RootDir}, fs, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("init page store: %w", err)
	}
	extractor, err := crawler.NewExtractor(cfg.Extract)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	fetcher := collyfetcher.New(cfg.Fetch, logger)
	clock := system.New()

	posts := memory.NewQueue[crawler.Post]()
	comments := memory.NewQueue[crawler.CommentLink]()

	loop := discovery.New(
		discovery.Config{
			FrontPageURL:      cfg.Crawler.FrontPageURL,
			PollInterval:      cfg.Crawler.PollInterval,
			OutputRoot:        store.Root(),
			MaxFilenameLength: cfg.Output.MaxFilenameLength,
			MaxPolls:          cfg.Crawler.MaxPolls,
		},
		fetcher,
		extractor,
		store,
		posts,
		clock,
		uuid.New(),
		crawler.TimerPauser{},
		logger,
	)

	postWorkers := make([]dispatcher.Runner, 0, cfg.Crawler.PostWorkers)
	for i := range cfg.Crawler.PostWorkers {
		postWorkers = append(postWorkers,
			worker.NewPostWorker(i, posts, comments, fetcher, extractor, store, logger))
	}
	commentWorkers := make([]dispatcher.Runner, 0, cfg.Crawler.CommentWorkers)
	for i := range cfg.Crawler.CommentWorkers {
		commentWorkers = append(commentWorkers,
			worker.NewCommentWorker(i, comments, fetcher, store, cfg.Output.MaxFilenameLength, logger))
	}

	d := dispatcher.New(
		dispatcher.Config{DrainTimeout: cfg.Crawler.DrainTimeout},
		loop,
		posts,
		comments,
		postWorkers,
		commentWorkers,
		logger,
	)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		dispatcher: d,
	}
	if cfg.Metrics.Addr != "" {
		a.server = api.NewServer(d, clock, logger)
	}
	return a, nil
}

// Root returns the folder pages are written under.
func (a *App) Root() string {
	return a.store.Root()
}

// Run crawls until ctx ends or a fatal error occurs. The ops server, when
// enabled, stops with the crawler; if it cannot serve, the crawler shuts
// down as if interrupted.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting crawler",
		zap.String("front_page", a.cfg.Crawler.FrontPageURL),
		zap.String("output", a.store.Root()),
		zap.Duration("poll_interval", a.cfg.Crawler.PollInterval),
	)
	if a.server == nil {
		if err := a.dispatcher.Run(ctx); err != nil {
			return fmt.Errorf("run crawler: %w", err)
		}
		return nil
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	g, gctx := errgroup.WithContext(serverCtx)
	g.Go(func() error {
		defer stopServer()
		return a.dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.cfg.Metrics.Addr)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}
	return nil
}
