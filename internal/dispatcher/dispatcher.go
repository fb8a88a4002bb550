// Package dispatcher runs the discovery loop and both worker pools, and
// owns the order in which they shut down.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/hn-crawler/internal/metrics"
	"github.com/JakeFAU/hn-crawler/internal/worker"
)

// DefaultDrainTimeout bounds how long queued work may finish after shutdown
// was requested.
const DefaultDrainTimeout = 10 * time.Second

const depthSampleInterval = time.Second

// Runner is a long-running stage of the pipeline.
type Runner interface {
	Run(ctx context.Context) error
}

// Queue is the part of a work queue the dispatcher manages.
type Queue interface {
	Len() int
	Pending() int
	Close()
}

// Config controls shutdown.
type Config struct {
	// DrainTimeout bounds the drain after the parent context ends. Zero
	// cancels in-flight work immediately.
	DrainTimeout time.Duration
}

// Dispatcher wires discovery, the post pool and the comment pool together.
type Dispatcher struct {
	cfg            Config
	discovery      Runner
	posts          Queue
	comments       Queue
	postWorkers    []Runner
	commentWorkers []Runner
	logger         *zap.Logger
}

// New creates a Dispatcher.
func New(
	cfg Config,
	discovery Runner,
	posts Queue,
	comments Queue,
	postWorkers []Runner,
	commentWorkers []Runner,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:            cfg,
		discovery:      discovery,
		posts:          posts,
		comments:       comments,
		postWorkers:    postWorkers,
		commentWorkers: commentWorkers,
		logger:         logger.Named("dispatcher"),
	}
}

// QueueDepths reports how many items wait in each queue.
func (d *Dispatcher) QueueDepths() map[string]int {
	return map[string]int{
		worker.PoolPosts:    d.posts.Len(),
		worker.PoolComments: d.comments.Len(),
	}
}

// Run blocks until the pipeline has stopped. When ctx ends, discovery stops
// at once, the post queue is closed and drained, then the comment queue is
// closed and drained, bounded by DrainTimeout. The first error from any
// stage aborts everything without draining and is returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	// Workers outlive ctx so they can drain; cancelWork ends them.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer d.posts.Close()
		return d.discovery.Run(gctx)
	})

	var postsWG, commentsWG sync.WaitGroup
	for _, w := range d.postWorkers {
		postsWG.Add(1)
		g.Go(func() error {
			defer postsWG.Done()
			return w.Run(workCtx)
		})
	}
	for _, w := range d.commentWorkers {
		commentsWG.Add(1)
		g.Go(func() error {
			defer commentsWG.Done()
			return w.Run(workCtx)
		})
	}

	drained := make(chan struct{})
	go func() {
		postsWG.Wait()
		// Post workers are the only producers of comment links.
		d.comments.Close()
		commentsWG.Wait()
		close(drained)
	}()

	g.Go(func() error {
		d.watch(ctx, gctx, drained, cancelWork)
		return nil
	})
	g.Go(func() error {
		d.sampleDepths(drained)
		return nil
	})

	d.logger.Info("crawler running",
		zap.Int("post_workers", len(d.postWorkers)),
		zap.Int("comment_workers", len(d.commentWorkers)),
	)
	err := g.Wait()
	if err != nil {
		d.logger.Error("crawler stopped on error", zap.Error(err))
		return err
	}
	d.logger.Info("crawler stopped")
	return nil
}

// watch cancels the workers once draining is no longer wanted.
func (d *Dispatcher) watch(ctx, gctx context.Context, drained <-chan struct{}, cancelWork context.CancelFunc) {
	select {
	case <-drained:
		return
	case <-gctx.Done():
	}

	if ctx.Err() == nil {
		// A stage failed; queued work is abandoned.
		cancelWork()
		return
	}
	if d.cfg.DrainTimeout <= 0 {
		d.logger.Info("shutdown requested, abandoning queued work", d.depthFields()...)
		cancelWork()
		return
	}

	d.logger.Info("shutdown requested, draining queues",
		append(d.depthFields(), zap.Duration("timeout", d.cfg.DrainTimeout))...)
	timer := time.NewTimer(d.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
		d.logger.Info("queues drained")
	case <-timer.C:
		d.logger.Warn("drain timeout exceeded, cancelling in-flight work", d.depthFields()...)
		cancelWork()
	}
}

func (d *Dispatcher) sampleDepths(drained <-chan struct{}) {
	ticker := time.NewTicker(depthSampleInterval)
	defer ticker.Stop()
	for {
		d.reportDepths()
		select {
		case <-drained:
			d.reportDepths()
			return
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) reportDepths() {
	for name, depth := range d.QueueDepths() {
		metrics.SetQueueDepth(name, depth)
	}
}

func (d *Dispatcher) depthFields() []zap.Field {
	return []zap.Field{
		zap.Int("posts_queued", d.posts.Len()),
		zap.Int("posts_unfinished", d.posts.Pending()),
		zap.Int("comments_queued", d.comments.Len()),
		zap.Int("comments_unfinished", d.comments.Pending()),
	}
}
