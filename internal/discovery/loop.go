// Package discovery polls the front page and hands new posts to the post
// workers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hn-crawler/internal/clock/system"
	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/metrics"
)

// DefaultPollInterval is the pause between two polls.
const DefaultPollInterval = 30 * time.Second

// Poll results used as metric labels.
const (
	resultNewPosts    = "new_posts"
	resultNoNewPosts  = "no_new_posts"
	resultUnavailable = "unavailable"
	resultMismatch    = "mismatch"
	resultError       = "error"
)

// Config controls the discovery loop.
type Config struct {
	FrontPageURL      string
	PollInterval      time.Duration
	OutputRoot        string
	MaxFilenameLength int
	// MaxPolls stops the loop after that many polls. Zero polls forever.
	MaxPolls int
}

// Loop finds posts whose folder does not exist yet.
type Loop struct {
	cfg       Config
	fetcher   crawler.Fetcher
	extractor *crawler.Extractor
	store     crawler.PageStore
	posts     crawler.Queue[crawler.Post]
	clock     crawler.Clock
	ids       crawler.IDGenerator
	pauser    crawler.Pauser
	logger    *zap.Logger
}

// New constructs a Loop. A nil clock or pauser uses the wall clock.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	extractor *crawler.Extractor,
	store crawler.PageStore,
	posts crawler.Queue[crawler.Post],
	clock crawler.Clock,
	ids crawler.IDGenerator,
	pauser crawler.Pauser,
	logger *zap.Logger,
) *Loop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if clock == nil {
		clock = system.New()
	}
	if pauser == nil {
		pauser = crawler.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		posts:     posts,
		clock:     clock,
		ids:       ids,
		pauser:    pauser,
		logger:    logger.Named("discovery"),
	}
}

// Run polls until ctx is done or MaxPolls is reached. It returns an error
// only for failures that must stop the crawler.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("discovery started",
		zap.String("front_page", l.cfg.FrontPageURL),
		zap.Duration("interval", l.cfg.PollInterval),
	)
	for polls := 0; l.cfg.MaxPolls <= 0 || polls < l.cfg.MaxPolls; polls++ {
		if ctx.Err() != nil {
			break
		}
		if polls > 0 {
			l.pauser.Pause(ctx, l.cfg.PollInterval)
			if ctx.Err() != nil {
				break
			}
		}
		if _, err := l.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
	}
	l.logger.Info("discovery stopped")
	return nil
}

// Poll runs a single discovery cycle and returns how many posts it enqueued.
func (l *Loop) Poll(ctx context.Context) (int, error) {
	start := l.clock.Now()
	logger := l.logger.With(zap.String("poll_id", l.newPollID()))

	enqueued, result, err := l.poll(ctx, logger)
	elapsed := system.Since(l.clock, start)
	metrics.ObservePoll(result, elapsed)
	logger.Debug("poll finished",
		zap.String("result", result),
		zap.Int("enqueued", enqueued),
		zap.Duration("elapsed", elapsed),
	)
	return enqueued, err
}

func (l *Loop) poll(ctx context.Context, logger *zap.Logger) (int, string, error) {
	page := l.fetcher.Fetch(ctx, l.cfg.FrontPageURL)
	if !page.OK() {
		if ctx.Err() != nil {
			return 0, resultUnavailable, nil
		}
		logger.Warn("front page unavailable",
			zap.String("url", l.cfg.FrontPageURL),
			zap.String("outcome", page.Outcome()),
		)
		return 0, resultUnavailable, nil
	}

	entries, err := l.extractor.ParseFrontPage(page.Body)
	if err != nil {
		// The markup changed; pairing titles with comment threads would
		// misfile posts.
		logger.Error("cannot parse front page", zap.Error(err))
		if errors.Is(err, crawler.ErrFrontPageMismatch) {
			return 0, resultMismatch, nil
		}
		return 0, resultError, nil
	}

	candidates, err := l.newPosts(entries, logger)
	if err != nil {
		return 0, resultError, err
	}
	if len(candidates) == 0 {
		logger.Info("no new posts", zap.Int("listed", len(entries)))
		return 0, resultNoNewPosts, nil
	}

	for i, post := range candidates {
		if err := l.posts.Enqueue(ctx, post); err != nil {
			metrics.AddPostsEnqueued(i)
			return i, resultError, fmt.Errorf("enqueue post %s: %w", post.ID, err)
		}
	}
	metrics.AddPostsEnqueued(len(candidates))
	logger.Info("new posts found",
		zap.Int("listed", len(entries)),
		zap.Int("enqueued", len(candidates)),
	)
	return len(candidates), resultNewPosts, nil
}

// newPosts keeps the entries with a fetchable post URL and no folder yet.
func (l *Loop) newPosts(entries []crawler.FrontPageEntry, logger *zap.Logger) ([]crawler.Post, error) {
	var posts []crawler.Post
	for _, entry := range entries {
		post, err := crawler.NewPost(entry, l.cfg.OutputRoot, l.cfg.MaxFilenameLength)
		if err != nil {
			logger.Error("cannot derive post identity",
				zap.String("comments_url", entry.CommentsURL),
				zap.String("title", entry.Title),
				zap.Error(err),
			)
			continue
		}
		if !crawler.IsFetchableURL(post.URL) {
			logger.Debug("post url not fetchable", zap.String("post_id", post.ID), zap.String("url", post.URL))
			continue
		}
		exists, err := l.store.FolderExists(post.Folder)
		if err != nil {
			return nil, fmt.Errorf("check folder for post %s: %w", post.ID, err)
		}
		if exists {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (l *Loop) newPollID() string {
	if l.ids == nil {
		return ""
	}
	id, err := l.ids.NewID()
	if err != nil {
		l.logger.Warn("generate poll id", zap.Error(err))
		return ""
	}
	return id
}
