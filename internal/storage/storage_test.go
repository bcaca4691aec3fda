package storage

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/terra-clan/assessment-search/internal/models"
	"github.com/terra-clan/assessment-search/migrations"
)

func TestLoadMigrationsOrderedByVersion(t *testing.T) {
	src := fstest.MapFS{
		"010_c.sql": {Data: []byte("SELECT 3;")},
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"002_b.sql": {Data: []byte("SELECT 2;")},
		"README.md": {Data: []byte("notes")},
	}

	got, err := loadMigrations(src)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(got))
	}
	for i, want := range []int{1, 2, 10} {
		if got[i].Version != want {
			t.Errorf("migration %d has version %d, want %d", i, got[i].Version, want)
		}
	}
	if got[2].Name != "010_c.sql" || got[2].SQL != "SELECT 3;" {
		t.Errorf("unexpected last migration: %+v", got[2])
	}
}

func TestLoadMigrationsRejectsBadNames(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no prefix":         {"create.sql": {Data: []byte("SELECT 1;")}},
		"zero version":      {"000_init.sql": {Data: []byte("SELECT 1;")}},
		"duplicate version": {"001_a.sql": {Data: []byte("SELECT 1;")}, "1_b.sql": {Data: []byte("SELECT 2;")}},
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadMigrations(src); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := loadMigrations(migrations.FS)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(got) == 0 || got[0].Name != "001_create_search_log.sql" {
		t.Fatalf("unexpected embedded migrations: %+v", got)
	}
	if !strings.Contains(got[0].SQL, "CREATE TABLE IF NOT EXISTS search_log") {
		t.Error("first migration does not create search_log")
	}
}

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepositoryWithPool(mock), mock
}

func TestMigrateAppliesPendingSteps(t *testing.T) {
	repo, mock := newMockRepository(t)
	src := fstest.MapFS{
		"001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"002_b.sql": {Data: []byte("CREATE TABLE b (id INT);")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS search_schema_version")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM search_schema_version")).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(1))

	// 001 is already applied; only 002 runs
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT);")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_schema_version")).
		WithArgs(2, "002_b.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Migrate(context.Background(), src); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMigrateStopsOnFailedStep(t *testing.T) {
	repo, mock := newMockRepository(t)
	src := fstest.MapFS{
		"001_a.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"002_b.sql": {Data: []byte("CREATE TABLE b (id INT);")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS search_schema_version")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0)")).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := repo.Migrate(context.Background(), src)
	if err == nil || !strings.Contains(err.Error(), "001_a.sql") {
		t.Fatalf("expected error naming 001_a.sql, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecordSearch(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entry := &models.SearchLogEntry{
		ID:          "8f7c2a52-6a3e-4d0e-9b0e-2b1f3c4d5e6f",
		SessionID:   "s1",
		Query:       "java developer",
		Time:        70,
		TopK:        10,
		Status:      models.SearchSucceeded,
		ResultCount: 2,
		DurationMs:  120,
		CreatedAt:   created,
	}

	session := "s1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_log")).
		WithArgs(entry.ID, &session, "java developer", 70, 10, "succeeded", 2, (*string)(nil), int64(120), created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.RecordSearch(context.Background(), entry); err != nil {
		t.Fatalf("RecordSearch failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecordSearchError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_log")).
		WillReturnError(errors.New("connection reset"))

	err := repo.RecordSearch(context.Background(), &models.SearchLogEntry{ID: "x", Status: models.SearchFailed})
	if err == nil || !strings.Contains(err.Error(), "failed to record search") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestListRecentSearches(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	session := "s1"
	failure := "HTTP 500"

	columns := []string{"id", "session_id", "query", "time_limit", "top_k", "status", "result_count", "error", "duration_ms", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM search_log")).
		WithArgs("s1", 5).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("b", &session, "sales", 30, 3, "failed", 0, &failure, int64(40), created).
			AddRow("a", &session, "java", 70, 10, "succeeded", 2, (*string)(nil), int64(120), created.Add(-time.Minute)))

	entries, err := repo.ListRecentSearches(context.Background(), ListFilters{SessionID: "s1", Limit: 5})
	if err != nil {
		t.Fatalf("ListRecentSearches failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if e := entries[0]; e.ID != "b" || e.Status != models.SearchFailed || e.Error != "HTTP 500" || e.SessionID != "s1" {
		t.Errorf("unexpected first entry: %+v", e)
	}
	if e := entries[1]; e.Error != "" || e.ResultCount != 2 || e.Time != 70 || e.DurationMs != 120 {
		t.Errorf("unexpected second entry: %+v", e)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(ListFilters{})
	if !strings.Contains(query, "LIMIT $1") || len(args) != 1 || args[0] != 50 {
		t.Errorf("default listing: %q %v", query, args)
	}

	query, args = buildListQuery(ListFilters{SessionID: "s1", Status: models.SearchFailed, Limit: 5})
	for _, frag := range []string{"session_id = $1", "status = $2", "LIMIT $3", "ORDER BY created_at DESC"} {
		if !strings.Contains(query, frag) {
			t.Errorf("query missing %q: %s", frag, query)
		}
	}
	if len(args) != 3 || args[0] != "s1" || args[1] != "failed" || args[2] != 5 {
		t.Errorf("unexpected args: %v", args)
	}

	_, args = buildListQuery(ListFilters{Limit: 10000})
	if args[0] != 50 {
		t.Errorf("oversized limit should fall back to 50, got %v", args[0])
	}
}

func TestNopRepository(t *testing.T) {
	var repo Repository = NopRepository{}
	ctx := context.Background()

	if err := repo.RecordSearch(ctx, &models.SearchLogEntry{ID: "x"}); err != nil {
		t.Errorf("RecordSearch: %v", err)
	}
	entries, err := repo.ListRecentSearches(ctx, ListFilters{})
	if err != nil || entries == nil || len(entries) != 0 {
		t.Errorf("ListRecentSearches = %v, %v", entries, err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
