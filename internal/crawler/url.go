package crawler

import (
	"net/url"
	"strings"
)

// IsFetchableURL reports whether rawURL is an absolute http or https URL.
func IsFetchableURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// resolve joins ref onto base. Absolute refs pass through unchanged and an
// unparsable ref is returned as-is.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	parsed, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	if parsed.IsAbs() {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
