package crawler

import (
	"net/http"
	"time"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// FrontierStats is a point-in-time snapshot of both frontier sets. The two
// counts are read with separate round-trips.
type FrontierStats struct {
	Pending int64 `json:"pending"`
	Done    int64 `json:"done"`
}
