package discovery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
	"github.com/JakeFAU/hn-crawler/internal/crawler/crawlertest"
	"github.com/JakeFAU/hn-crawler/internal/queue/memory"
	"github.com/JakeFAU/hn-crawler/internal/storage/local"
)

const (
	frontPageURL = "https://news.ycombinator.com/"
	outputRoot   = "/out"
)

type harness struct {
	fetcher *crawlertest.Fetcher
	store   *local.PageStore
	fs      afero.Fs
	posts   *memory.Queue[crawler.Post]
	pauser  *countingPauser
	loop    *Loop
}

func newHarness(t *testing.T, maxPolls int) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := local.New(local.Config{RootDir: outputRoot}, fs, zap.NewNop())
	require.NoError(t, err)
	h := &harness{
		fetcher: crawlertest.NewFetcher(),
		store:   store,
		fs:      fs,
		posts:   memory.NewQueue[crawler.Post](),
		pauser:  &countingPauser{},
	}
	h.loop = h.newLoop(t, store, maxPolls)
	return h
}

func (h *harness) newLoop(t *testing.T, store crawler.PageStore, maxPolls int) *Loop {
	t.Helper()
	extractor, err := crawler.NewExtractor(crawler.ExtractorConfig{})
	require.NoError(t, err)
	return New(
		Config{
			FrontPageURL: frontPageURL,
			PollInterval: time.Minute,
			OutputRoot:   outputRoot,
			MaxPolls:     maxPolls,
		},
		h.fetcher,
		extractor,
		store,
		h.posts,
		&fakeClock{now: time.Unix(0, 0)},
		&sequentialIDs{},
		h.pauser,
		zap.NewNop(),
	)
}

func (h *harness) drain(t *testing.T) []crawler.Post {
	t.Helper()
	var out []crawler.Post
	for h.posts.Len() > 0 {
		post, err := h.posts.Dequeue(context.Background())
		require.NoError(t, err)
		h.posts.Done()
		out = append(out, post)
	}
	return out
}

func TestPollEnqueuesOnlyNewPosts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	h.fetcher.Serve(frontPageURL, crawlertest.FrontPage(
		crawlertest.Story{ID: 1, URL: "https://example.com/one", Title: "Hello World"},
		crawlertest.Story{ID: 2, URL: "https://example.com/two", Title: "Already Seen"},
	))
	require.NoError(t, h.fs.MkdirAll(filepath.Join(outputRoot, "2_Already-Seen"), 0o750))

	n, err := h.loop.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	posts := h.drain(t)
	require.Len(t, posts, 1)
	assert.Equal(t, crawler.Post{
		URL:         "https://example.com/one",
		Title:       "Hello World",
		CommentsURL: "https://news.ycombinator.com/item?id=1",
		ID:          "1",
		Filename:    "1_Hello-World",
		Folder:      filepath.Join(outputRoot, "1_Hello-World"),
	}, posts[0])
}

func TestPollSkipsUnfetchablePostURLs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	h.fetcher.Serve(frontPageURL, crawlertest.FrontPage(
		crawlertest.Story{ID: 1, URL: "ftp://example.com/file", Title: "FTP"},
		crawlertest.Story{ID: 2, URL: "item?id=2", Title: "Ask HN: Anything"},
	))

	n, err := h.loop.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	posts := h.drain(t)
	require.Len(t, posts, 1)
	assert.Equal(t, "https://news.ycombinator.com/item?id=2", posts[0].URL)
}

func TestPollFrontPageUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)

	n, err := h.loop.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.posts.Len())
}

func TestPollStructureMismatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	html := crawlertest.FrontPage(crawlertest.Story{ID: 1, URL: "https://example.com/a", Title: "A"}) +
		`<table><tr><td class="subtext"><a href="item?id=9">orphan</a></td></tr></table>`
	h.fetcher.Serve(frontPageURL, html)

	n, err := h.loop.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.posts.Len())
}

func TestPollSkipsMalformedCommentsURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	html := `<table>` +
		`<tr><td><span class="titleline"><a href="https://example.com/bad">Bad</a></span></td></tr>` +
		`<tr><td class="subtext"><a href="item?id=abc">discuss</a></td></tr>` +
		`<tr><td><span class="titleline"><a href="https://example.com/good">Good</a></span></td></tr>` +
		`<tr><td class="subtext"><a href="item?id=77">discuss</a></td></tr>` +
		`</table>`
	h.fetcher.Serve(frontPageURL, html)

	n, err := h.loop.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	posts := h.drain(t)
	require.Len(t, posts, 1)
	assert.Equal(t, "77", posts[0].ID)
}

func TestPollPropagatesFilesystemErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	h.fetcher.Serve(frontPageURL, crawlertest.FrontPage(
		crawlertest.Story{ID: 1, URL: "https://example.com/one", Title: "One"},
	))
	loop := h.newLoop(t, brokenStore{}, 0)

	_, err := loop.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskGone)
	assert.ErrorIs(t, loop.Run(context.Background()), errDiskGone)
}

func TestRunStopsAfterMaxPolls(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3)
	h.fetcher.Serve(frontPageURL, crawlertest.FrontPage())

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, 3, h.fetcher.Calls(frontPageURL))
	assert.Equal(t, 2, h.pauser.count(), "no pause after the last poll")
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, h.pauser.delays())
}

func TestRunReenqueuesOnlyUntilFolderExists(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	h.fetcher.Serve(frontPageURL, crawlertest.FrontPage(
		crawlertest.Story{ID: 5, URL: "https://example.com/five", Title: "Five"},
	))
	h.pauser.onPause = func() {
		// A post worker created the folder between the two polls.
		require.NoError(t, h.store.EnsureFolder(filepath.Join(outputRoot, "5_Five")))
	}

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Len(t, h.drain(t), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	h.fetcher.Serve(frontPageURL, crawlertest.FrontPage())
	ctx, cancel := context.WithCancel(context.Background())
	h.pauser.onPause = cancel

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not stop after cancel")
	}
	assert.Equal(t, 1, h.fetcher.Calls(frontPageURL))
}

var errDiskGone = errors.New("disk gone")

type brokenStore struct{}

func (brokenStore) FolderExists(string) (bool, error) { return false, errDiskGone }

func (brokenStore) EnsureFolder(string) error { return errDiskGone }

func (brokenStore) WritePage(string, string, string) (string, error) { return "", errDiskGone }

type countingPauser struct {
	mu      sync.Mutex
	waits   []time.Duration
	onPause func()
}

func (p *countingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	p.waits = append(p.waits, delay)
	hook := p.onPause
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (p *countingPauser) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waits)
}

func (p *countingPauser) delays() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.waits...)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("poll-%d", s.n), nil
}
