package models

import "time"

// SearchStatus is the outcome of a finished submission
type SearchStatus string

const (
	SearchSucceeded SearchStatus = "succeeded"
	SearchFailed    SearchStatus = "failed"
)

// SearchLogEntry is one finished submission as stored in the search log.
// SessionID is the session cookie value and never leaves the server.
type SearchLogEntry struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"-"`
	Query       string       `json:"query"`
	Time        int          `json:"time"`
	TopK        int          `json:"top_k"`
	Status      SearchStatus `json:"status"`
	ResultCount int          `json:"result_count"`
	Error       string       `json:"error,omitempty"` // internal detail, never shown on the page
	DurationMs  int64        `json:"duration_ms"`
	CreatedAt   time.Time    `json:"created_at"`
}
