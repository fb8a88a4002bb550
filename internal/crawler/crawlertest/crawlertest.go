// Package crawlertest provides fakes and Hacker News markup builders for
// tests of the crawl pipeline.
package crawlertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
)

// Story is one front-page row.
type Story struct {
	ID    int
	URL   string
	Title string
}

// FrontPage renders stories the way the front page lays them out: a headline
// row followed by a subtext row whose last link is the comments thread.
func FrontPage(stories ...Story) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Hacker News</title></head><body><table class="itemlist">`)
	for _, s := range stories {
		fmt.Fprintf(&b, `<tr class="athing" id="%d"><td class="title"><span class="titleline">`+
			`<a href="%s">%s</a></span></td></tr>`+
			`<tr><td class="subtext"><span class="subline"><a href="user?id=pg">pg</a> `+
			`<a href="item?id=%d">1 hour ago</a> | <a href="item?id=%d">12&nbsp;comments</a></span></td></tr>`,
			s.ID, s.URL, s.Title, s.ID, s.ID)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

// CommentThread renders one top-level comment per href. An empty href
// renders a comment without links.
func CommentThread(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Comments</title></head><body><table class="comment-tree">`)
	for i, href := range hrefs {
		b.WriteString(`<tr class="athing comtr"><td><div class="comment">`)
		if href == "" {
			fmt.Fprintf(&b, `<span class="commtext c00">comment %d</span>`, i)
		} else {
			fmt.Fprintf(&b, `<span class="commtext c00">see <a href="%s">this</a></span>`, href)
		}
		b.WriteString(`</div></td></tr>`)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

// Page renders a minimal document with the given title. An empty title
// renders no <title> element.
func Page(title, body string) string {
	if title == "" {
		return "<html><body>" + body + "</body></html>"
	}
	return "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
}

// Fetcher serves canned bodies. Unknown URLs fail with FailureConnection.
type Fetcher struct {
	mu     sync.Mutex
	pages  map[string]crawler.FetchResult
	calls  map[string]int
	panics map[string]bool
}

// NewFetcher returns a Fetcher with no pages.
func NewFetcher() *Fetcher {
	return &Fetcher{
		pages:  make(map[string]crawler.FetchResult),
		calls:  make(map[string]int),
		panics: make(map[string]bool),
	}
}

// Serve registers a body for url.
func (f *Fetcher) Serve(url, body string) *Fetcher {
	return f.Set(url, crawler.Fetched(url, body))
}

// Set registers an arbitrary result for url.
func (f *Fetcher) Set(url string, result crawler.FetchResult) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = result
	return f
}

// PanicOn makes fetches of url panic.
func (f *Fetcher) PanicOn(url string) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[url] = true
	return f
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) crawler.FetchResult {
	f.mu.Lock()
	f.calls[url]++
	result, ok := f.pages[url]
	shouldPanic := f.panics[url]
	f.mu.Unlock()

	if shouldPanic {
		panic("fetch exploded: " + url)
	}
	if err := ctx.Err(); err != nil {
		return crawler.Failed(url, crawler.FailureCanceled, err)
	}
	if !ok {
		return crawler.Failed(url, crawler.FailureConnection, errors.New("connection refused"))
	}
	return result
}

// Calls reports how often url was fetched.
func (f *Fetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}
