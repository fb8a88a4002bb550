package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/metrics"
)

// CommentWorker saves pages linked from comments, named after their title.
type CommentWorker struct {
	id                int
	comments          crawler.Queue[crawler.CommentLink]
	fetcher           crawler.Fetcher
	store             crawler.PageStore
	maxFilenameLength int
	logger            *zap.Logger
}

// NewCommentWorker constructs a CommentWorker.
func NewCommentWorker(
	id int,
	comments crawler.Queue[crawler.CommentLink],
	fetcher crawler.Fetcher,
	store crawler.PageStore,
	maxFilenameLength int,
	logger *zap.Logger,
) *CommentWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentWorker{
		id:                id,
		comments:          comments,
		fetcher:           fetcher,
		store:             store,
		maxFilenameLength: maxFilenameLength,
		logger:            logger.Named("comment_worker").With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming comment links until the queue is drained or ctx
// finishes. A non-nil error is a filesystem failure.
func (w *CommentWorker) Run(ctx context.Context) error {
	w.logger.Debug("comment worker started")
	defer w.logger.Debug("comment worker stopped")
	return consume(ctx, w.comments, PoolComments, w.logger, w.handle)
}

func (w *CommentWorker) handle(ctx context.Context, link crawler.CommentLink) error {
	res := w.fetcher.Fetch(ctx, link.URL)
	if !res.OK() {
		return nil
	}
	title, ok := crawler.PageTitle(res.Body)
	if !ok {
		w.logger.Debug("linked page has no title", zap.String("url", link.URL))
		return nil
	}
	name := crawler.SanitizeName(title, w.maxFilenameLength)
	path, err := w.store.WritePage(link.Folder, name, res.Body)
	if err != nil {
		return fmt.Errorf("save linked page %s: %w", link.URL, err)
	}
	if path != "" {
		metrics.ObservePageSaved("comment")
		w.logger.Debug("linked page saved", zap.String("url", link.URL), zap.String("path", path))
	}
	return nil
}
