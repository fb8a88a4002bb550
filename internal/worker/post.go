package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/metrics"
)

// PostWorker downloads a post and its discussion thread, saves the post
// page and queues every URL linked from the comments.
type PostWorker struct {
	id        int
	posts     crawler.Queue[crawler.Post]
	comments  crawler.Queue[crawler.CommentLink]
	fetcher   crawler.Fetcher
	extractor *crawler.Extractor
	store     crawler.PageStore
	logger    *zap.Logger
}

// NewPostWorker constructs a PostWorker.
func NewPostWorker(
	id int,
	posts crawler.Queue[crawler.Post],
	comments crawler.Queue[crawler.CommentLink],
	fetcher crawler.Fetcher,
	extractor *crawler.Extractor,
	store crawler.PageStore,
	logger *zap.Logger,
) *PostWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostWorker{
		id:        id,
		posts:     posts,
		comments:  comments,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		logger:    logger.Named("post_worker").With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming posts until the queue is drained or ctx finishes.
// A non-nil error is a filesystem failure that must stop the crawler.
func (w *PostWorker) Run(ctx context.Context) error {
	w.logger.Debug("post worker started")
	defer w.logger.Debug("post worker stopped")
	return consume(ctx, w.posts, PoolPosts, w.logger, w.handle)
}

func (w *PostWorker) handle(ctx context.Context, post crawler.Post) error {
	logger := w.logger.With(zap.String("post_id", post.ID))

	page := w.fetcher.Fetch(ctx, post.URL)
	thread := w.fetcher.Fetch(ctx, post.CommentsURL)
	// No folder, so the next run retries the post.
	if ctx.Err() != nil || page.Failure == crawler.FailureCanceled || thread.Failure == crawler.FailureCanceled {
		logger.Warn("post abandoned on shutdown", zap.String("url", post.URL))
		return nil
	}
	links := w.extractor.ExtractCommentLinks(thread.Text())

	if err := w.store.EnsureFolder(post.Folder); err != nil {
		return fmt.Errorf("create folder for post %s: %w", post.ID, err)
	}
	path, err := w.store.WritePage(post.Folder, post.Filename, page.Text())
	if err != nil {
		return fmt.Errorf("save post %s: %w", post.ID, err)
	}
	if path != "" {
		metrics.ObservePageSaved("post")
	}

	for i, link := range links {
		item := crawler.CommentLink{URL: link, Folder: post.Folder}
		if err := w.comments.Enqueue(ctx, item); err != nil {
			metrics.AddCommentLinksEnqueued(i)
			if ctx.Err() != nil {
				logger.Warn("stopped queuing comment links", zap.Int("dropped", len(links)-i))
				return nil
			}
			return fmt.Errorf("enqueue comment link for post %s: %w", post.ID, err)
		}
	}
	metrics.AddCommentLinksEnqueued(len(links))

	logger.Info("post processed",
		zap.String("title", post.Title),
		zap.String("page", page.Outcome()),
		zap.String("comments", thread.Outcome()),
		zap.Int("links", len(links)),
	)
	return nil
}
