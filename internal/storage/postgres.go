package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/assessment-search/internal/models"
)

// Pool is the subset of *pgxpool.Pool the repository uses
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 10
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 1
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// NewPostgresRepositoryWithPool wraps an already connected pool
func NewPostgresRepositoryWithPool(pool Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// RecordSearch inserts a finished submission into search_log
func (r *PostgresRepository) RecordSearch(ctx context.Context, e *models.SearchLogEntry) error {
	query := `
		INSERT INTO search_log (id, session_id, query, time_limit, top_k, status, result_count, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		optional(e.SessionID),
		e.Query,
		e.Time,
		e.TopK,
		string(e.Status),
		e.ResultCount,
		optional(e.Error),
		e.DurationMs,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	return nil
}

// ListRecentSearches returns log entries newest first
func (r *PostgresRepository) ListRecentSearches(ctx context.Context, filters ListFilters) ([]*models.SearchLogEntry, error) {
	query, args := buildListQuery(filters)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.SearchLogEntry, 0)

	for rows.Next() {
		var e models.SearchLogEntry
		var statusStr string
		var sessionID, errMsg *string

		err := rows.Scan(
			&e.ID,
			&sessionID,
			&e.Query,
			&e.Time,
			&e.TopK,
			&statusStr,
			&e.ResultCount,
			&errMsg,
			&e.DurationMs,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search log entry: %w", err)
		}

		e.Status = models.SearchStatus(statusStr)
		if sessionID != nil {
			e.SessionID = *sessionID
		}
		if errMsg != nil {
			e.Error = *errMsg
		}

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search log: %w", err)
	}

	return entries, nil
}

// buildListQuery assembles the filtered listing query and its arguments
func buildListQuery(filters ListFilters) (string, []interface{}) {
	query := `
		SELECT id, session_id, query, time_limit, top_k, status, result_count, error, duration_ms, created_at
		FROM search_log
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.SessionID != "" {
		query += fmt.Sprintf(" AND session_id = $%d", argNum)
		args = append(args, filters.SessionID)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	return query, args
}

// optional stores empty strings as NULL
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
