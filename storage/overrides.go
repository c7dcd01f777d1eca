package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"finnsync/models"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SetOverride creates or merges an override. Nil fields and an empty reason
// keep whatever was stored before.
func (s *SQLiteStore) SetOverride(ctx context.Context, key string, area, price *int, reason string) (*models.Override, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("set override: empty key")
	}

	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (key, area, price, override_reason, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			area = COALESCE(excluded.area, overrides.area),
			price = COALESCE(excluded.price, overrides.price),
			override_reason = COALESCE(excluded.override_reason, overrides.override_reason),
			updated_at = excluded.updated_at`,
		key, nullInt(area), nullInt(price), reasonArg, s.now())
	if err != nil {
		return nil, err
	}
	return s.GetOverride(ctx, key)
}

func (s *SQLiteStore) GetOverride(ctx context.Context, key string) (*models.Override, error) {
	return getOverride(ctx, s.db, strings.TrimSpace(key))
}

func getOverride(ctx context.Context, q queryer, key string) (*models.Override, error) {
	var o models.Override
	var area, price sql.NullInt64
	var reason sql.NullString
	var updated sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT key, area, price, override_reason, updated_at
		FROM overrides WHERE key = ?`, key).Scan(&o.Key, &area, &price, &reason, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Area = intPtr(area)
	o.Price = intPtr(price)
	o.Reason = reason.String
	o.UpdatedAt = updated.Time
	return &o, nil
}

func (s *SQLiteStore) ListOverrides(ctx context.Context) ([]models.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, area, price, override_reason, updated_at
		FROM overrides ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Override
	for rows.Next() {
		var o models.Override
		var area, price sql.NullInt64
		var reason sql.NullString
		var updated sql.NullTime
		if err := rows.Scan(&o.Key, &area, &price, &reason, &updated); err != nil {
			return nil, err
		}
		o.Area = intPtr(area)
		o.Price = intPtr(price)
		o.Reason = reason.String
		o.UpdatedAt = updated.Time
		out = append(out, o)
	}
	return out, rows.Err()
}

// RemoveOverride deletes the override for key and reports whether one existed.
func (s *SQLiteStore) RemoveOverride(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM overrides WHERE key = ?`, strings.TrimSpace(key))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
