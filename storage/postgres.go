package storage

import (
	"context"
	"fmt"
	"time"

	"finnsync/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMirror keeps a read-only copy of the local store in Postgres for
// dashboards and ad hoc queries. The SQLite store stays authoritative.
type PostgresMirror struct {
	pool *pgxpool.Pool
}

func NewPostgresMirror(ctx context.Context, connString string) (*PostgresMirror, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	m := &PostgresMirror{pool: pool}
	if err := m.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate mirror: %w", err)
	}
	return m, nil
}

func (m *PostgresMirror) Close() {
	m.pool.Close()
}

func (m *PostgresMirror) migrate(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS finn_listings (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			status TEXT,
			address TEXT,
			postal_code TEXT,
			price INTEGER,
			url TEXT,
			area INTEGER,
			price_per_sqm INTEGER,
			extra JSONB,
			is_active BOOLEAN NOT NULL,
			exported BOOLEAN NOT NULL,
			scraped_at TIMESTAMPTZ,
			mirrored_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (kind, key)
		);

		CREATE TABLE IF NOT EXISTS finn_runs (
			id TEXT PRIMARY KEY,
			kind TEXT,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			status TEXT,
			listings_found INTEGER,
			listings_inserted INTEGER,
			listings_updated INTEGER,
			listings_deactivated INTEGER,
			rows_appended INTEGER,
			cells_updated INTEGER,
			errors_count INTEGER
		)`)
	return err
}

// =============================================================================
// Listings
// =============================================================================

// MirrorListings upserts the given listings in one batch.
func (m *PostgresMirror) MirrorListings(ctx context.Context, listings []models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO finn_listings (
			kind, key, status, address, postal_code, price, url, area, price_per_sqm,
			extra, is_active, exported, scraped_at, mirrored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (kind, key) DO UPDATE SET
			status = EXCLUDED.status,
			address = EXCLUDED.address,
			postal_code = EXCLUDED.postal_code,
			price = EXCLUDED.price,
			url = EXCLUDED.url,
			area = EXCLUDED.area,
			price_per_sqm = EXCLUDED.price_per_sqm,
			extra = EXCLUDED.extra,
			is_active = EXCLUDED.is_active,
			exported = EXCLUDED.exported,
			scraped_at = EXCLUDED.scraped_at,
			mirrored_at = NOW()`

	batch := &pgx.Batch{}
	for i := range listings {
		l := &listings[i]
		extra, err := l.ExtraJSON()
		if err != nil {
			return 0, fmt.Errorf("encode extra for %s: %w", l.Key, err)
		}
		batch.Queue(query,
			string(l.Kind), l.Key, l.Status, l.Address, l.PostalCode, l.Price, l.URL, l.Area, l.PricePerSqm,
			extra, l.IsActive, l.Exported, l.ScrapedAt,
		)
	}

	results := m.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range listings {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("mirror %s: %w", listings[i].Key, err)
		}
	}
	return len(listings), nil
}

// =============================================================================
// Runs
// =============================================================================

func (m *PostgresMirror) RecordRun(ctx context.Context, run *models.ScrapeRun) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO finn_runs (id, kind, started_at, finished_at, status, listings_found, listings_inserted,
			listings_updated, listings_deactivated, rows_appended, cells_updated, errors_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at, status = EXCLUDED.status,
			listings_found = EXCLUDED.listings_found, listings_inserted = EXCLUDED.listings_inserted,
			listings_updated = EXCLUDED.listings_updated, listings_deactivated = EXCLUDED.listings_deactivated,
			rows_appended = EXCLUDED.rows_appended, cells_updated = EXCLUDED.cells_updated,
			errors_count = EXCLUDED.errors_count`,
		run.ID, string(run.Kind), run.StartedAt, run.FinishedAt, string(run.Status), run.ListingsFound,
		run.ListingsInserted, run.ListingsUpdated, run.ListingsDeactivated, run.RowsAppended,
		run.CellsUpdated, run.ErrorsCount,
	)
	return err
}

// ActiveCount returns how many listings of kind the mirror holds as active.
func (m *PostgresMirror) ActiveCount(ctx context.Context, kind models.Kind) (int, error) {
	var n int
	err := m.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM finn_listings WHERE kind = $1 AND is_active`, string(kind)).Scan(&n)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return n, err
}
