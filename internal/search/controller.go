package search

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/assessment-search/internal/metrics"
	"github.com/terra-clan/assessment-search/internal/models"
)

// Common errors
var (
	ErrEmptyQuery   = models.ErrEmptyQuery
	ErrInFlight     = errors.New("search already in flight")
	ErrSearchFailed = errors.New("search failed")
)

// FailureMessage is the only failure text ever shown to the user
const FailureMessage = "An error occurred while searching. Please try again."

// Status is the controller's position in the submission lifecycle
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Searcher performs the upstream search call
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.AssessmentRecord, error)
}

// Recorder stores finished submissions
type Recorder interface {
	RecordSearch(ctx context.Context, entry *models.SearchLogEntry) error
}

// State is a point-in-time copy of the controller
type State struct {
	Query     string                    `json:"query"`
	Time      int                       `json:"time"`
	TopK      int                       `json:"top_k"`
	Results   []models.AssessmentRecord `json:"results"`
	Loading   bool                      `json:"loading"`
	Error     string                    `json:"error,omitempty"`
	Status    Status                    `json:"status"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// CanSubmit reports whether the search action is enabled
func (s State) CanSubmit() bool {
	return !s.Loading && strings.TrimSpace(s.Query) != ""
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder logs every finished submission to r
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithMetrics counts submissions in m
func WithMetrics(m *metrics.SearchMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithSessionID tags logs and search log entries with the owning session
func WithSessionID(id string) Option {
	return func(c *Controller) {
		c.sessionID = id
	}
}

// WithOnFinish registers fn to run with the final state after every submission
func WithOnFinish(fn func(State)) Option {
	return func(c *Controller) {
		c.onFinish = fn
	}
}

// Controller owns the form state of one search page and drives submissions
type Controller struct {
	searcher  Searcher
	recorder  Recorder
	metrics   *metrics.SearchMetrics
	sessionID string
	onFinish  func(State)

	mu          sync.Mutex
	state       State
	subscribers map[chan State]struct{}
}

// NewController creates a controller with the default form values
func NewController(searcher Searcher, opts ...Option) *Controller {
	c := &Controller{
		searcher: searcher,
		state: State{
			Time:      models.DefaultTime,
			TopK:      models.DefaultTopK,
			Results:   []models.AssessmentRecord{},
			Status:    StatusIdle,
			UpdatedAt: time.Now(),
		},
		subscribers: make(map[chan State]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetQuery stores the query text as typed
func (c *Controller) SetQuery(text string) {
	c.update(func(s *State) { s.Query = text })
}

// SetTime stores the time limit clamped to [30, 200]
func (c *Controller) SetTime(minutes int) {
	c.update(func(s *State) { s.Time = models.ClampTime(minutes) })
}

// SetTopK stores the result count clamped to [1, 10]
func (c *Controller) SetTopK(k int) {
	c.update(func(s *State) { s.TopK = models.ClampTopK(k) })
}

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Restore loads a previously saved state. An in-flight flag is never restored.
func (c *Controller) Restore(s State) {
	c.update(func(st *State) {
		st.Query = s.Query
		st.Time = models.ClampTime(s.Time)
		st.TopK = models.ClampTopK(s.TopK)
		st.Results = slices.Clone(s.Results)
		if st.Results == nil {
			st.Results = []models.AssessmentRecord{}
		}
		st.Error = s.Error
		st.Loading = false
		st.Status = s.Status
		if st.Status == StatusSubmitting || st.Status == "" {
			st.Status = StatusIdle
		}
	})
}

// Submit runs one search and blocks until it finishes.
// It returns ErrEmptyQuery or ErrInFlight when the submission is not allowed,
// and ErrSearchFailed for any upstream or decoding failure.
func (c *Controller) Submit(ctx context.Context) error {
	req, err := c.begin()
	if err != nil {
		return err
	}
	return c.run(ctx, req)
}

// SubmitAsync checks the same preconditions as Submit, then runs the search in
// the background. Callers observe completion through State or Subscribe.
func (c *Controller) SubmitAsync(ctx context.Context) error {
	req, err := c.begin()
	if err != nil {
		return err
	}

	go func() {
		// run has already recorded the failure; the panic must not take the process down
		defer func() {
			if r := recover(); r != nil {
				slog.Error("search panicked", "panic", r, "session_id", c.sessionID)
			}
		}()
		_ = c.run(ctx, req)
	}()

	return nil
}

// Subscribe returns a channel receiving the state after every change.
// Slow readers only see the latest state. cancel closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// begin moves the controller into submitting and returns the request to send
func (c *Controller) begin() (models.SearchRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := models.SearchRequest{
		Query: c.state.Query,
		Time:  c.state.Time,
		TopK:  c.state.TopK,
	}.Normalized()

	if err := req.Validate(); err != nil {
		return req, err
	}
	if c.state.Loading {
		return req, ErrInFlight
	}

	c.state.Loading = true
	c.state.Error = ""
	c.state.Status = StatusSubmitting
	c.state.UpdatedAt = time.Now()
	c.notify()

	return req, nil
}

// run performs the upstream call; finish always runs, even if the searcher panics
func (c *Controller) run(ctx context.Context, req models.SearchRequest) error {
	start := time.Now()

	var (
		records  []models.AssessmentRecord
		err      error
		returned bool
	)

	defer func() {
		if !returned {
			err = errors.New("search aborted")
		}
		c.finish(ctx, req, records, err, time.Since(start))
	}()

	records, err = c.searcher.Search(ctx, req)
	returned = true

	if err != nil {
		return ErrSearchFailed
	}
	return nil
}

// finish clears the in-flight flag and applies the outcome
func (c *Controller) finish(ctx context.Context, req models.SearchRequest, records []models.AssessmentRecord, err error, elapsed time.Duration) {
	c.mu.Lock()
	c.state.Loading = false
	c.state.UpdatedAt = time.Now()
	if err != nil {
		// Previous results stay visible next to the error
		c.state.Error = FailureMessage
		c.state.Status = StatusFailed
	} else {
		c.state.Results = records
		if c.state.Results == nil {
			c.state.Results = []models.AssessmentRecord{}
		}
		c.state.Error = ""
		c.state.Status = StatusSucceeded
	}
	final := c.snapshot()
	c.notify()
	c.mu.Unlock()

	entry := &models.SearchLogEntry{
		ID:          uuid.NewString(),
		SessionID:   c.sessionID,
		Query:       req.Query,
		Time:        req.Time,
		TopK:        req.TopK,
		Status:      models.SearchSucceeded,
		ResultCount: len(records),
		DurationMs:  elapsed.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}

	if err != nil {
		entry.Status = models.SearchFailed
		entry.ResultCount = 0
		entry.Error = err.Error()
		slog.Error("search failed",
			"error", err,
			"session_id", c.sessionID,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		slog.Info("search completed",
			"session_id", c.sessionID,
			"time", req.Time,
			"top_k", req.TopK,
			"results", len(records),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	c.metrics.IncSearch(string(entry.Status))
	c.metrics.ObserveDuration(elapsed)

	if c.recorder != nil {
		if rerr := c.recorder.RecordSearch(ctx, entry); rerr != nil {
			slog.Warn("failed to record search", "error", rerr, "session_id", c.sessionID)
		}
	}

	if c.onFinish != nil {
		c.onFinish(final)
	}
}

// update applies fn under the lock and notifies subscribers
func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.state)
	c.state.UpdatedAt = time.Now()
	c.notify()
}

// snapshot must be called with mu held
func (c *Controller) snapshot() State {
	s := c.state
	s.Results = slices.Clone(c.state.Results)
	if s.Results == nil {
		s.Results = []models.AssessmentRecord{}
	}
	return s
}

// notify must be called with mu held. Sends never block; a full channel has its
// stale value replaced.
func (c *Controller) notify() {
	if len(c.subscribers) == 0 {
		return
	}

	s := c.snapshot()
	for ch := range c.subscribers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
