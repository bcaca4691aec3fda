package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
)

// migration is one numbered schema step, e.g. 001_create_search_log.sql
type migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaVersionTable = `
	CREATE TABLE IF NOT EXISTS search_schema_version (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)
`

// Migrate brings the search log schema up to the newest migration in src.
// Each step runs in its own transaction together with its version row.
func (r *PostgresRepository) Migrate(ctx context.Context, src fs.FS) error {
	steps, err := loadMigrations(src)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema version table: %w", err)
	}

	var current int
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM search_schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	pending := 0
	for _, m := range steps {
		if m.Version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return err
		}
		pending++
	}

	slog.Info("search log schema ready", "version", max(current, latest(steps)), "applied", pending)
	return nil
}

func (r *PostgresRepository) apply(ctx context.Context, m migration) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("migration %s: failed to begin: %w", m.Name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %s: %w", m.Name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO search_schema_version (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("migration %s: failed to record version: %w", m.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("migration %s: failed to commit: %w", m.Name, err)
	}

	slog.Info("migration applied", "version", m.Version, "name", m.Name)
	return nil
}

// loadMigrations reads the *.sql files of src ordered by their numeric prefix
func loadMigrations(src fs.FS) ([]migration, error) {
	names, err := fs.Glob(src, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	steps := make([]migration, 0, len(names))
	seen := make(map[int]string)

	for _, name := range names {
		prefix, _, ok := strings.Cut(path.Base(name), "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version, e.g. 001_", name)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		data, err := fs.ReadFile(src, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		steps = append(steps, migration{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}

func latest(steps []migration) int {
	if len(steps) == 0 {
		return 0
	}
	return steps[len(steps)-1].Version
}
