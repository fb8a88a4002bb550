package crawler

// Post is one front-page item. Its identity is the comments-thread URL.
type Post struct {
	URL         string
	Title       string
	CommentsURL string
	ID          string
	Filename    string
	Folder      string
}

// CommentLink is a URL referenced from a post's discussion thread together
// with the folder the fetched page belongs in.
type CommentLink struct {
	URL    string
	Folder string
}

// FrontPageEntry is one (post URL, title, comments URL) triple parsed from
// the front page.
type FrontPageEntry struct {
	PostURL     string
	Title       string
	CommentsURL string
}

// FetchStatus is the outcome class of a fetch.
type FetchStatus string

// Fetch outcomes.
const (
	FetchStatusFetched FetchStatus = "fetched"
	FetchStatusSkipped FetchStatus = "skipped"
	FetchStatusFailed  FetchStatus = "failed"
)

// SkipReason explains why a URL was not requested at all.
type SkipReason string

// Skip reasons.
const (
	SkipReasonIgnoredSuffix     SkipReason = "ignored_suffix"
	SkipReasonUnsupportedScheme SkipReason = "unsupported_scheme"
)

// FailureKind classifies fetch failures.
type FailureKind string

// Failure kinds.
const (
	FailureConnection       FailureKind = "connection"
	FailureTimeout          FailureKind = "timeout"
	FailureDisconnect       FailureKind = "disconnect"
	FailureTooManyRedirects FailureKind = "too_many_redirects"
	FailureDecode           FailureKind = "decode"
	FailureCanceled         FailureKind = "canceled"
	FailureOther            FailureKind = "other"
)

// FetchResult is Fetched(body), Skipped(reason) or Failed(kind).
type FetchResult struct {
	URL        string
	FinalURL   string
	Status     FetchStatus
	StatusCode int
	Body       string
	SkipReason SkipReason
	Failure    FailureKind
	Err        error
}

// Fetched builds a successful result.
func Fetched(url string, body string) FetchResult {
	return FetchResult{URL: url, FinalURL: url, Status: FetchStatusFetched, Body: body}
}

// Skipped builds a result for a URL that was never requested.
func Skipped(url string, reason SkipReason) FetchResult {
	return FetchResult{URL: url, Status: FetchStatusSkipped, SkipReason: reason}
}

// Failed builds a result for a request that did not produce usable text.
func Failed(url string, kind FailureKind, err error) FetchResult {
	return FetchResult{URL: url, Status: FetchStatusFailed, Failure: kind, Err: err}
}

// OK reports whether the result carries a body.
func (r FetchResult) OK() bool {
	return r.Status == FetchStatusFetched
}

// Text returns the body for fetched results and "" otherwise.
func (r FetchResult) Text() string {
	if !r.OK() {
		return ""
	}
	return r.Body
}

// Outcome is a single label for metrics and logs: the status, or the
// failure kind / skip reason when there is one.
func (r FetchResult) Outcome() string {
	switch r.Status {
	case FetchStatusFailed:
		return string(r.Failure)
	case FetchStatusSkipped:
		return string(r.SkipReason)
	default:
		return string(r.Status)
	}
}
