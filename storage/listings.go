package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"finnsync/models"
)

// Upsert writes a scraped listing. Pending overrides for the key are applied
// first, a reappearing key is re-activated, and the exported flag is left as
// it was. A commute row is created for listings with an address.
func (s *SQLiteStore) Upsert(ctx context.Context, l models.Listing) (models.UpsertOutcome, error) {
	key := strings.TrimSpace(l.Key)
	if key == "" {
		return 0, fmt.Errorf("upsert: empty key")
	}
	l.Key = key

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	override, err := getOverride(ctx, tx, key)
	if err != nil {
		return 0, fmt.Errorf("load override: %w", err)
	}
	l = override.Apply(l)

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM listings WHERE kind = ? AND key = ?`, l.Kind, key).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	outcome := models.UpsertInserted
	if err == nil {
		outcome = models.UpsertUpdated
	}

	extra, err := l.ExtraJSON()
	if err != nil {
		return 0, fmt.Errorf("encode extra: %w", err)
	}

	now := s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO listings (kind, key, status, address, postal_code, price, url, area, price_per_sqm,
			extra, is_active, exported, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, FALSE, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			status = excluded.status,
			address = excluded.address,
			postal_code = excluded.postal_code,
			price = excluded.price,
			url = excluded.url,
			area = excluded.area,
			price_per_sqm = excluded.price_per_sqm,
			extra = excluded.extra,
			is_active = TRUE,
			scraped_at = excluded.scraped_at,
			updated_at = excluded.updated_at`,
		l.Kind, key, l.Status, l.Address, l.PostalCode, nullInt(l.Price), l.URL, nullInt(l.Area),
		nullInt(l.PricePerSqm), nullString(extra), now, now, now)
	if err != nil {
		return 0, err
	}

	if l.Address != "" {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO commute (key, updated_at) VALUES (?, ?)`, key, now); err != nil {
			return 0, fmt.Errorf("create commute row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return outcome, nil
}

// DeactivateMissing marks every active listing of kind whose key is not in
// keys as inactive. An empty key set deactivates all active listings.
func (s *SQLiteStore) DeactivateMissing(ctx context.Context, kind models.Kind, keys []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS seen_keys (key TEXT PRIMARY KEY)`); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_keys`); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen_keys (key) VALUES (?)`)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, strings.TrimSpace(k)); err != nil {
			stmt.Close()
			return 0, err
		}
	}
	stmt.Close()

	res, err := tx.ExecContext(ctx, `
		UPDATE listings SET is_active = FALSE, updated_at = ?
		WHERE kind = ? AND is_active = TRUE AND key NOT IN (SELECT key FROM seen_keys)`,
		s.now(), kind)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_keys`); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// MarkExported flags keys as written to the spreadsheet. Unknown keys are
// ignored.
func (s *SQLiteStore) MarkExported(ctx context.Context, kind models.Kind, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	now := s.now()
	for _, part := range chunk(keys, 500) {
		args := []any{now, kind}
		for _, k := range part {
			args = append(args, k)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE listings SET exported = TRUE, updated_at = ?
			WHERE kind = ? AND key IN (`+placeholders(len(part))+`)`, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, tx.Commit()
}

const exportSelect = `
	SELECT l.kind, l.key, l.status, l.address, l.postal_code, l.price, l.url, l.area, l.price_per_sqm,
		l.extra, l.is_active, l.exported, l.scraped_at, l.created_at, l.updated_at,
		c.key, ` + "%s" + `, c.adresse_cleaned, c.google_maps_url, c.updated_at
	FROM listings l
	LEFT JOIN commute c ON c.key = l.key`

// FetchForExport returns active listings of kind joined with their commute
// data, most recently scraped first.
func (s *SQLiteStore) FetchForExport(ctx context.Context, kind models.Kind, filter models.ExportFilter) ([]models.ExportRow, error) {
	return s.fetchRows(ctx, kind, true, filter)
}

// FetchUnlistedForExport returns inactive listings when the filter includes
// unlisted ads, and nothing otherwise.
func (s *SQLiteStore) FetchUnlistedForExport(ctx context.Context, kind models.Kind, filter models.ExportFilter) ([]models.ExportRow, error) {
	if !filter.IncludeUnlisted {
		return nil, nil
	}
	return s.fetchRows(ctx, kind, false, filter)
}

func (s *SQLiteStore) fetchRows(ctx context.Context, kind models.Kind, active bool, filter models.ExportFilter) ([]models.ExportRow, error) {
	query := fmt.Sprintf(exportSelect, commuteSelectList("c")) + `
	WHERE l.kind = ? AND l.is_active = ?`
	args := []any{kind, active}
	if filter.MaxPrice != nil {
		query += ` AND (l.price IS NULL OR l.price <= ?)`
		args = append(args, *filter.MaxPrice)
	}
	query += ` ORDER BY l.scraped_at DESC, l.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ExportRow
	for rows.Next() {
		row, err := scanExportRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListByKind returns every stored listing of kind, active or not.
func (s *SQLiteStore) ListByKind(ctx context.Context, kind models.Kind) ([]models.Listing, error) {
	query := fmt.Sprintf(exportSelect, commuteSelectList("c")) + `
	WHERE l.kind = ? ORDER BY l.id`
	rows, err := s.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		row, err := scanExportRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row.Listing)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetListing(ctx context.Context, kind models.Kind, key string) (*models.ExportRow, error) {
	query := fmt.Sprintf(exportSelect, commuteSelectList("c")) + `
	WHERE l.kind = ? AND l.key = ?`
	rows, err := s.db.QueryContext(ctx, query, kind, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	row, err := scanExportRow(rows)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func scanExportRow(rows *sql.Rows) (models.ExportRow, error) {
	var row models.ExportRow
	var status, address, postal, url, extra sql.NullString
	var price, area, ppsqm sql.NullInt64
	var scraped, created, updated sql.NullTime
	var cKey, cAddr, cMaps sql.NullString
	var cUpdated sql.NullTime
	minutes := make([]sql.NullInt64, len(models.CommuteAttributes))

	dest := []any{&row.Kind, &row.Key, &status, &address, &postal, &price, &url, &area, &ppsqm,
		&extra, &row.IsActive, &row.Exported, &scraped, &created, &updated, &cKey}
	for i := range minutes {
		dest = append(dest, &minutes[i])
	}
	dest = append(dest, &cAddr, &cMaps, &cUpdated)

	if err := rows.Scan(dest...); err != nil {
		return row, err
	}

	row.Status = status.String
	row.Address = address.String
	row.PostalCode = postal.String
	row.URL = url.String
	row.Price = intPtr(price)
	row.Area = intPtr(area)
	row.PricePerSqm = intPtr(ppsqm)
	row.ScrapedAt = scraped.Time
	row.CreatedAt = created.Time
	row.UpdatedAt = updated.Time
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &row.Extra); err != nil {
			return row, fmt.Errorf("decode extra for %s: %w", row.Key, err)
		}
	}

	if cKey.Valid {
		c := models.NewCommute(cKey.String)
		for i, attr := range models.CommuteAttributes {
			c.Minutes[attr.Field] = intPtr(minutes[i])
		}
		c.AddressCleaned = cAddr.String
		c.MapsURL = cMaps.String
		c.UpdatedAt = cUpdated.Time
		row.Commute = c
	}
	return row, nil
}

// Stats returns aggregate counts for kind.
func (s *SQLiteStore) Stats(ctx context.Context, kind models.Kind) (models.Stats, error) {
	var st models.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT is_active THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_active AND NOT exported THEN 1 ELSE 0 END), 0)
		FROM listings WHERE kind = ?`, kind).Scan(&st.Total, &st.Active, &st.Inactive, &st.NotExported)
	return st, err
}

// ActiveCount is the number of active listings of kind.
func (s *SQLiteStore) ActiveCount(ctx context.Context, kind models.Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE kind = ? AND is_active = TRUE`, kind).Scan(&n)
	return n, err
}

// ListForRefresh returns exported, active listings, oldest scrape first.
func (s *SQLiteStore) ListForRefresh(ctx context.Context, kind models.Kind, limit int) ([]models.Listing, error) {
	query := `
		SELECT key, url, status FROM listings
		WHERE kind = ? AND is_active = TRUE AND exported = TRUE AND url <> ''
		ORDER BY scraped_at ASC`
	args := []any{kind}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		l := models.Listing{Kind: kind, IsActive: true, Exported: true}
		var status sql.NullString
		if err := rows.Scan(&l.Key, &l.URL, &status); err != nil {
			return nil, err
		}
		l.Status = status.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateStatus stores a refreshed availability status.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, kind models.Kind, key, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE listings SET status = ?, updated_at = ? WHERE kind = ? AND key = ?`,
		status, s.now(), kind, key)
	return err
}

func nullString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
