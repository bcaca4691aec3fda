package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/terra-clan/assessment-search/internal/models"
	"github.com/terra-clan/assessment-search/internal/search"
)

type pageData struct {
	Title   string
	State   search.State
	MinTime int
	MaxTime int
	MinTopK int
	MaxTopK int
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:   "SHL Assessment Search",
		State:   s.controller(r).State(),
		MinTime: models.MinTime,
		MaxTime: models.MaxTime,
		MinTopK: models.MinTopK,
		MaxTopK: models.MaxTopK,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.templates.Render(w, "page.html", data); err != nil {
		slog.Error("failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// handleFormSearch stores the submitted fields and starts the search in the
// background, then sends the browser back to the page
func (s *Server) handleFormSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	ctrl := s.controller(r)
	ctrl.SetQuery(r.PostFormValue("query"))
	ctrl.SetTime(parseNumber(r.PostFormValue("time")))
	ctrl.SetTopK(parseNumber(r.PostFormValue("top_k")))

	if err := ctrl.SubmitAsync(context.WithoutCancel(r.Context())); err != nil {
		if !errors.Is(err, search.ErrEmptyQuery) && !errors.Is(err, search.ErrInFlight) {
			slog.Error("unexpected submit error", "error", err)
		}
		slog.Debug("search not started", "reason", err, "session_id", SessionFromContext(r.Context()))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parseNumber reads a number input. Anything unparsable counts as 0 and is
// later clamped to the lower bound.
func parseNumber(v string) int {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		if f > math.MaxInt32 {
			return math.MaxInt32
		}
		if f < math.MinInt32 {
			return math.MinInt32
		}
		return int(f)
	}
	return 0
}
