package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/terra-clan/assessment-search/internal/models"
	"github.com/terra-clan/assessment-search/internal/search"
	"github.com/terra-clan/assessment-search/internal/storage"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", name+" not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Search API handlers

// searchRequestBody mirrors the upstream request; absent fields keep the
// session's current values
type searchRequestBody struct {
	Query *string `json:"query"`
	Time  *int    `json:"time"`
	TopK  *int    `json:"top_k"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.controller(r).State())
}

func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctrl := s.controller(r)
	if req.Query != nil {
		ctrl.SetQuery(*req.Query)
	}
	if req.Time != nil {
		ctrl.SetTime(*req.Time)
	}
	if req.TopK != nil {
		ctrl.SetTopK(*req.TopK)
	}

	// The upstream call is not cancelled if the client goes away
	err := ctrl.Submit(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		respondError(w, http.StatusBadRequest, "validation_error", "query is required")
	case errors.Is(err, search.ErrInFlight):
		respondError(w, http.StatusConflict, "search_in_flight", "a search is already running")
	case errors.Is(err, search.ErrSearchFailed):
		respondError(w, http.StatusBadGateway, "search_failed", search.FailureMessage)
	case err != nil:
		slog.Error("unexpected search error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", search.FailureMessage)
	default:
		respondJSON(w, http.StatusOK, ctrl.State())
	}
}

// handleHistory lists the caller's own searches only
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	filters := storage.ListFilters{
		SessionID: SessionFromContext(r.Context()),
		Status:    models.SearchStatus(r.URL.Query().Get("status")),
		Limit:     50,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	entries, err := s.repo.ListRecentSearches(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list search history", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list search history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"searches": entries,
		"total":    len(entries),
	})
}
