package models

import (
	"errors"
	"strings"
)

// Bounds applied to the numeric search constraints
const (
	MinTime = 30
	MaxTime = 200

	MinTopK = 1
	MaxTopK = 10

	DefaultTime = 70
	DefaultTopK = 10
)

// ErrEmptyQuery is returned when the query is blank after trimming
var ErrEmptyQuery = errors.New("query is required")

// SearchRequest is the body sent to the upstream search endpoint
type SearchRequest struct {
	Query string `json:"query"`
	Time  int    `json:"time"`  // maximum assessment duration, minutes
	TopK  int    `json:"top_k"` // number of results
}

// Clamp restricts v to the closed interval [lo, hi]
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampTime restricts a time limit to [MinTime, MaxTime]
func ClampTime(minutes int) int {
	return Clamp(minutes, MinTime, MaxTime)
}

// ClampTopK restricts a result count to [MinTopK, MaxTopK]
func ClampTopK(k int) int {
	return Clamp(k, MinTopK, MaxTopK)
}

// Normalized returns a copy with numeric fields clamped to their bounds
func (r SearchRequest) Normalized() SearchRequest {
	r.Time = ClampTime(r.Time)
	r.TopK = ClampTopK(r.TopK)
	return r
}

// Validate checks that the request may be submitted
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}
