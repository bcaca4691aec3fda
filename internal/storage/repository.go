package storage

import (
	"context"

	"github.com/terra-clan/assessment-search/internal/models"
)

// Repository defines the interface for search log persistence
type Repository interface {
	RecordSearch(ctx context.Context, entry *models.SearchLogEntry) error
	ListRecentSearches(ctx context.Context, filters ListFilters) ([]*models.SearchLogEntry, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// ListFilters narrows a search log listing
type ListFilters struct {
	SessionID string
	Status    models.SearchStatus
	Limit     int
}

// NopRepository discards entries. Used when no database is configured.
type NopRepository struct{}

func (NopRepository) RecordSearch(ctx context.Context, entry *models.SearchLogEntry) error {
	return nil
}

func (NopRepository) ListRecentSearches(ctx context.Context, filters ListFilters) ([]*models.SearchLogEntry, error) {
	return []*models.SearchLogEntry{}, nil
}

func (NopRepository) Ping(ctx context.Context) error { return nil }

func (NopRepository) Close() error { return nil }
