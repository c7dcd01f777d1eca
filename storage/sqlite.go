package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"finnsync/models"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, path: dbPath, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path is the database file the store was opened on.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		status TEXT,
		address TEXT,
		postal_code TEXT,
		price INTEGER,
		url TEXT,
		area INTEGER,
		price_per_sqm INTEGER,
		extra JSON,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		exported BOOLEAN NOT NULL DEFAULT FALSE,
		scraped_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(kind, key)
	);

	CREATE TABLE IF NOT EXISTS overrides (
		key TEXT PRIMARY KEY,
		area INTEGER,
		price INTEGER,
		override_reason TEXT,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS commute (
		key TEXT PRIMARY KEY,
		` + commuteColumnDDL() + `
		adresse_cleaned TEXT,
		google_maps_url TEXT,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		kind TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_inserted INTEGER DEFAULT 0,
		listings_updated INTEGER DEFAULT 0,
		listings_deactivated INTEGER DEFAULT 0,
		rows_appended INTEGER DEFAULT 0,
		cells_updated INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		kind TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_listings_active ON listings(kind, is_active);
	CREATE INDEX IF NOT EXISTS idx_listings_exported ON listings(kind, exported);
	CREATE INDEX IF NOT EXISTS idx_listings_scraped ON listings(kind, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(kind, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func commuteColumnDDL() string {
	var b strings.Builder
	for _, attr := range models.CommuteAttributes {
		b.WriteString(attr.Field)
		b.WriteString(" INTEGER,\n\t\t")
	}
	return b.String()
}

// =============================================================================
// Runs and logs
// =============================================================================

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (id, kind, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.Kind, run.StartedAt.UTC(), run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs SET
			finished_at = ?, status = ?, listings_found = ?, listings_inserted = ?,
			listings_updated = ?, listings_deactivated = ?, rows_appended = ?,
			cells_updated = ?, errors_count = ?
		WHERE id = ?`,
		finished, run.Status, run.ListingsFound, run.ListingsInserted,
		run.ListingsUpdated, run.ListingsDeactivated, run.RowsAppended,
		run.CellsUpdated, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.ScrapeRun, error) {
	runs, err := s.queryRuns(ctx, `WHERE id = ?`, id)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.ScrapeRun, error) {
	return s.queryRuns(ctx, `ORDER BY started_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryRuns(ctx context.Context, clause string, args ...any) ([]models.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, started_at, finished_at, status, listings_found, listings_inserted,
			listings_updated, listings_deactivated, rows_appended, cells_updated, errors_count
		FROM scrape_runs `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &finished, &r.Status, &r.ListingsFound,
			&r.ListingsInserted, &r.ListingsUpdated, &r.ListingsDeactivated, &r.RowsAppended,
			&r.CellsUpdated, &r.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(ctx context.Context, runID string, level models.LogLevel, message string, kind models.Kind) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (run_id, timestamp, level, message, kind)
		VALUES (?, ?, ?, ?, ?)`,
		runID, s.now(), level, message, kind)
	return err
}

func (s *SQLiteStore) GetLogs(ctx context.Context, runID string) ([]models.ScrapeLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, level, message, kind
		FROM scrape_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Kind); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// Helpers
// =============================================================================

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunk(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > size {
		out = append(out, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}
