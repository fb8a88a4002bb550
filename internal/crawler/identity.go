package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFilenameLength caps derived file and folder names, in runes.
const DefaultMaxFilenameLength = 80

// MaxNameBytes caps derived names in bytes, leaving room for ".html" under
// the usual 255-byte filename limit.
const MaxNameBytes = 240

var (
	invalidNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\-\s\v\p{Z}]`)
	whitespaceRuns   = regexp.MustCompile(`[\s\v\p{Z}]+`)
	underscoreRuns   = regexp.MustCompile(`_{2,}`)
)

// SanitizeName turns arbitrary text into a filesystem-safe name: anything
// other than letters, digits, underscores and hyphens becomes an underscore,
// whitespace runs become one hyphen, underscore runs collapse, and the result
// is truncated to maxLen runes and at most MaxNameBytes bytes. SanitizeName(SanitizeName(s)) == SanitizeName(s).
func SanitizeName(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxFilenameLength
	}
	name := invalidNameChars.ReplaceAllString(text, "_")
	name = whitespaceRuns.ReplaceAllString(name, "-")
	name = underscoreRuns.ReplaceAllString(name, "_")
	runes := []rune(name)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	size := 0
	for i, r := range runes {
		size += utf8.RuneLen(r)
		if size > MaxNameBytes {
			runes = runes[:i]
			break
		}
	}
	return string(runes)
}

// PostID extracts the numeric id from a comments-thread URL such as
// https://news.ycombinator.com/item?id=12345.
func PostID(commentsURL string) (string, error) {
	u, err := url.Parse(commentsURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedCommentsURL, commentsURL, err)
	}
	id := u.Query().Get("id")
	if id == "" || strings.TrimLeft(id, "0123456789") != "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedCommentsURL, commentsURL)
	}
	return id, nil
}

// NewPost builds a Post and derives its filename and folder under root.
func NewPost(entry FrontPageEntry, root string, maxLen int) (Post, error) {
	id, err := PostID(entry.CommentsURL)
	if err != nil {
		return Post{}, err
	}
	filename := SanitizeName(id+"_"+entry.Title, maxLen)
	return Post{
		URL:         entry.PostURL,
		Title:       entry.Title,
		CommentsURL: entry.CommentsURL,
		ID:          id,
		Filename:    filename,
		Folder:      filepath.Join(root, filename),
	}, nil
}
