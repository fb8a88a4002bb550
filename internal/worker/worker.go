// Package worker implements the post and comment worker pools.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/metrics"
)

// Pool names used in logs and metrics.
const (
	PoolPosts    = "posts"
	PoolComments = "comments"
)

// consume dequeues items until the queue is closed and empty or ctx is done.
// Only errors from handle stop it early.
func consume[T any](
	ctx context.Context,
	queue crawler.Queue[T],
	pool string,
	logger *zap.Logger,
	handle func(context.Context, T) error,
) error {
	for {
		item, err := queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dequeue %s: %w", pool, err)
		}
		metrics.SetQueueDepth(pool, queue.Len())
		if err := process(ctx, queue, pool, logger, item, handle); err != nil {
			return err
		}
	}
}

// process handles one item. The item is acknowledged on every path,
// including a recovered panic.
func process[T any](
	ctx context.Context,
	queue crawler.Queue[T],
	pool string,
	logger *zap.Logger,
	item T,
	handle func(context.Context, T) error,
) (err error) {
	metrics.IncActiveWorkers(pool)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered from panic while processing item",
				zap.Any("panic", r),
				zap.Any("item", item),
				zap.Stack("stack"),
			)
			err = nil
		}
		queue.Done()
		metrics.DecActiveWorkers(pool)
		metrics.ObserveItemProcessed(pool)
	}()
	return handle(ctx, item)
}
