package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Default selectors match both the older (a.titlelink) and the current
// (span.titleline) Hacker News front-page markup.
const (
	DefaultBaseURL          = "https://news.ycombinator.com/"
	DefaultItemPrefix       = "item"
	DefaultHeadlineSelector = "a.titlelink, span.titleline > a"
	DefaultSubtextSelector  = "td.subtext"
	DefaultCommentSelector  = "span.c00"
	DefaultReplyMarker      = "reply"
)

// ExtractorConfig configures where the Extractor looks for things.
type ExtractorConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	ItemPrefix       string `mapstructure:"item_prefix"`
	HeadlineSelector string `mapstructure:"headline_selector"`
	SubtextSelector  string `mapstructure:"subtext_selector"`
	CommentSelector  string `mapstructure:"comment_selector"`
	ReplyMarker      string `mapstructure:"reply_marker"`
}

// Extractor turns page bodies into the next unit of work. All methods are
// pure and tolerate malformed markup.
type Extractor struct {
	cfg  ExtractorConfig
	base *url.URL
}

// NewExtractor validates cfg, filling defaults for empty fields.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ItemPrefix == "" {
		cfg.ItemPrefix = DefaultItemPrefix
	}
	if cfg.HeadlineSelector == "" {
		cfg.HeadlineSelector = DefaultHeadlineSelector
	}
	if cfg.SubtextSelector == "" {
		cfg.SubtextSelector = DefaultSubtextSelector
	}
	if cfg.CommentSelector == "" {
		cfg.CommentSelector = DefaultCommentSelector
	}
	if cfg.ReplyMarker == "" {
		cfg.ReplyMarker = DefaultReplyMarker
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	return &Extractor{cfg: cfg, base: base}, nil
}

// ParseFrontPage pairs every headline with the subtext block at the same
// position. The last anchor in a subtext block is the comments link.
// A count mismatch returns ErrFrontPageMismatch instead of guessing a pairing.
func (e *Extractor) ParseFrontPage(html string) ([]FrontPageEntry, error) {
	doc, err := newDocument(html)
	if err != nil {
		// Empty page, no candidates.
		return nil, nil //nolint:nilerr
	}
	headlines := doc.Find(e.cfg.HeadlineSelector)
	subtexts := doc.Find(e.cfg.SubtextSelector)
	if headlines.Length() != subtexts.Length() {
		return nil, fmt.Errorf("%w: %d headlines, %d subtexts",
			ErrFrontPageMismatch, headlines.Length(), subtexts.Length())
	}

	entries := make([]FrontPageEntry, 0, headlines.Length())
	subtexts.Each(func(i int, sub *goquery.Selection) {
		headline := headlines.Eq(i)
		postURL := strings.TrimSpace(headline.AttrOr("href", ""))
		if strings.HasPrefix(postURL, e.cfg.ItemPrefix) {
			postURL = resolve(e.base, postURL)
		}
		commentsHref := sub.Find("a").Last().AttrOr("href", "")
		entries = append(entries, FrontPageEntry{
			PostURL:     postURL,
			Title:       headline.Text(),
			CommentsURL: resolve(e.base, commentsHref),
		})
	})
	return entries, nil
}

// ExtractCommentLinks returns the first link of every comment, skipping
// comments without one and reply actions.
func (e *Extractor) ExtractCommentLinks(html string) []string {
	doc, err := newDocument(html)
	if err != nil {
		return nil
	}
	var links []string
	doc.Find(e.cfg.CommentSelector).Each(func(_ int, comment *goquery.Selection) {
		anchor := comment.Find("a").First()
		if anchor.Length() == 0 {
			return
		}
		href, ok := anchor.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if strings.Contains(href, e.cfg.ReplyMarker) {
			return
		}
		links = append(links, resolve(e.base, href))
	})
	return links
}

// PageTitle returns the text of the document's <title>, if it has one.
func PageTitle(html string) (string, bool) {
	doc, err := newDocument(html)
	if err != nil {
		return "", false
	}
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(title.Text())
	return text, text != ""
}

func newDocument(html string) (*goquery.Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("empty document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
