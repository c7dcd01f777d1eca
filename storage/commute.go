package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"finnsync/models"
)

func commuteSelectList(alias string) string {
	cols := make([]string, len(models.CommuteAttributes))
	for i, attr := range models.CommuteAttributes {
		cols[i] = alias + "." + attr.Field
	}
	return strings.Join(cols, ", ")
}

func commuteField(field string) (string, error) {
	for _, attr := range models.CommuteAttributes {
		if attr.Field == field {
			return attr.Field, nil
		}
	}
	return "", fmt.Errorf("unknown commute field %q", field)
}

// CommuteCandidates returns active listings of the given kinds that have an
// address and pass the price filter, with their commute rows attached.
func (s *SQLiteStore) CommuteCandidates(ctx context.Context, kinds []models.Kind, filter models.ExportFilter) ([]models.CommuteCandidate, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	query := `
		SELECT l.key, l.address, l.postal_code, c.key, ` + commuteSelectList("c") + `, c.adresse_cleaned, c.google_maps_url
		FROM listings l
		LEFT JOIN commute c ON c.key = l.key
		WHERE l.is_active = TRUE AND COALESCE(l.address, '') <> '' AND l.kind IN (` + placeholders(len(kinds)) + `)`
	var args []any
	for _, k := range kinds {
		args = append(args, k)
	}
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

	seen := make(map[string]bool)
	var out []models.CommuteCandidate
	for rows.Next() {
		var cand models.CommuteCandidate
		var postal, cKey, cAddr, cMaps sql.NullString
		minutes := make([]sql.NullInt64, len(models.CommuteAttributes))
		dest := []any{&cand.Key, &cand.Address, &postal, &cKey}
		for i := range minutes {
			dest = append(dest, &minutes[i])
		}
		dest = append(dest, &cAddr, &cMaps)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if seen[cand.Key] {
			continue
		}
		seen[cand.Key] = true

		cand.PostalCode = postal.String
		c := models.NewCommute(cand.Key)
		for i, attr := range models.CommuteAttributes {
			c.Minutes[attr.Field] = intPtr(minutes[i])
		}
		c.AddressCleaned = cAddr.String
		c.MapsURL = cMaps.String
		cand.Commute = c
		out = append(out, cand)
	}
	return out, rows.Err()
}

// SetCommuteMinutes persists one computed attribute.
func (s *SQLiteStore) SetCommuteMinutes(ctx context.Context, key, field string, minutes int) error {
	col, err := commuteField(field)
	if err != nil {
		return err
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commute (key, `+col+`, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET `+col+` = excluded.`+col+`, updated_at = excluded.updated_at`,
		key, minutes, now)
	return err
}

// SetCommuteAddress stores the cleaned routing address and map link.
func (s *SQLiteStore) SetCommuteAddress(ctx context.Context, key, cleaned, mapsURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commute (key, adresse_cleaned, google_maps_url, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			adresse_cleaned = excluded.adresse_cleaned,
			google_maps_url = excluded.google_maps_url,
			updated_at = excluded.updated_at`,
		key, cleaned, mapsURL, s.now())
	return err
}

func (s *SQLiteStore) GetCommute(ctx context.Context, key string) (*models.Commute, error) {
	var cKey string
	var cAddr, cMaps sql.NullString
	var updated sql.NullTime
	minutes := make([]sql.NullInt64, len(models.CommuteAttributes))
	dest := []any{&cKey}
	for i := range minutes {
		dest = append(dest, &minutes[i])
	}
	dest = append(dest, &cAddr, &cMaps, &updated)

	err := s.db.QueryRowContext(ctx, `
		SELECT c.key, `+commuteSelectList("c")+`, c.adresse_cleaned, c.google_maps_url, c.updated_at
		FROM commute c WHERE c.key = ?`, key).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c := models.NewCommute(cKey)
	for i, attr := range models.CommuteAttributes {
		c.Minutes[attr.Field] = intPtr(minutes[i])
	}
	c.AddressCleaned = cAddr.String
	c.MapsURL = cMaps.String
	c.UpdatedAt = updated.Time
	return c, nil
}
