package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const backupPrefix = "properties_"

// BackupName is the file name used for a backup taken at t.
func BackupName(t time.Time) string {
	return backupPrefix + t.Format("20060102_150405") + ".db"
}

// Backup writes a consistent copy of the database into dir and returns its
// path. VACUUM INTO includes pages still sitting in the WAL.
func (s *SQLiteStore) Backup(ctx context.Context, dir string, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, BackupName(t))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("backup %s already exists", path)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return path, nil
}
