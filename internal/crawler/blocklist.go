package crawler

import (
	"net/url"
	"strings"
)

// DefaultIgnoredSuffixes are non-HTML formats never worth downloading.
var DefaultIgnoredSuffixes = []string{".pdf", ".jpg"}

// SuffixBlocklist matches URLs whose path (or raw form) ends with one of a
// configured set of suffixes, case-insensitively.
type SuffixBlocklist struct {
	suffixes []string
}

// NewSuffixBlocklist normalises patterns; blank and duplicate entries are
// dropped. A nil blocklist blocks nothing.
func NewSuffixBlocklist(patterns []string) *SuffixBlocklist {
	b := &SuffixBlocklist{}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		b.addSuffix(value)
	}
	if len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func (b *SuffixBlocklist) addSuffix(suffix string) {
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// IsBlocked reports whether rawURL ends with a blocked suffix, either as
// written or once its query and fragment are stripped.
func (b *SuffixBlocklist) IsBlocked(rawURL string) bool {
	if b == nil {
		return false
	}
	candidates := []string{strings.ToLower(strings.TrimSpace(rawURL))}
	if u, err := url.Parse(rawURL); err == nil {
		candidates = append(candidates, strings.ToLower(u.Path))
	}
	for _, candidate := range candidates {
		for _, suffix := range b.suffixes {
			if strings.HasSuffix(candidate, suffix) {
				return true
			}
		}
	}
	return false
}
