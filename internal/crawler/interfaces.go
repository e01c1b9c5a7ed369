package crawler

import "context"

// Frontier is the worker-facing view of the shared pending/done set pair.
type Frontier interface {
	// ClaimNext removes one arbitrary member of pending. ok is false when
	// pending is empty.
	ClaimNext(ctx context.Context) (url string, ok bool, err error)
	// MarkDone adds url to the done set.
	MarkDone(ctx context.Context, url string) error
	// EnqueueIfNew adds url to pending unless it is already pending or done.
	// The check and the insert are not atomic unless the frontier was built
	// with atomic enqueue enabled.
	EnqueueIfNew(ctx context.Context, url string) (bool, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// LinkExtractor returns the absolute, normalized link targets found in a document.
type LinkExtractor interface {
	ExtractLinks(body []byte, baseURL string) ([]string, error)
}

// DoneCounter reports the cardinality of the done set.
type DoneCounter interface {
	DoneCount(ctx context.Context) (int64, error)
}
