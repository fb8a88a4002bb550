package crawler

import "errors"

var (
	// ErrFrontPageMismatch means the headline and subtext counts differ; the
	// page structure changed and the poll must be abandoned.
	ErrFrontPageMismatch = errors.New("front page headline and subtext counts differ")
	// ErrMalformedCommentsURL means the comments URL carries no numeric id.
	ErrMalformedCommentsURL = errors.New("comments url has no numeric id")
	// ErrQueueClosed is returned by Dequeue once a closed queue is empty.
	ErrQueueClosed = errors.New("queue closed")
)
