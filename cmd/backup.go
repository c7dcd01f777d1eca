package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"finnsync/storage"

	"github.com/spf13/cobra"
)

var (
	backupDir    string
	backupUpload bool
	backupKeep   int
)

func init() {
	backupCmd.Flags().StringVar(&backupDir, "dir", "backups", "directory for backup files")
	backupCmd.Flags().BoolVar(&backupUpload, "upload", false, "also upload the backup to S3 (needs S3_BUCKET)")
	backupCmd.Flags().IntVar(&backupKeep, "keep", 0, "with --upload, delete all but the newest N backups in the bucket (0 = keep all)")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent copy of the database to backups/properties_YYYYMMDD_HHMMSS.db.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		path, err := env.store.Backup(ctx, backupDir, time.Now())
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Database backed up to %s (%.2f MB)\n", path, float64(info.Size())/(1024*1024))

		if !backupUpload {
			return nil
		}
		uploader, err := newUploader(ctx)
		if err != nil {
			return err
		}
		key, err := uploader.UploadFile(ctx, path)
		if err != nil {
			return fmt.Errorf("upload backup: %w", err)
		}
		fmt.Fprintf(out, "Uploaded to s3://%s/%s\n", env.cfg.S3.Bucket, key)

		if backupKeep > 0 {
			pruned, err := uploader.PruneBackups(ctx, backupKeep)
			if err != nil {
				return err
			}
			for _, k := range pruned {
				fmt.Fprintf(out, "Deleted old backup %s\n", k)
			}
		}
		return nil
	},
}

func newUploader(ctx context.Context) (*storage.S3Uploader, error) {
	s3cfg := env.cfg.S3
	if !s3cfg.Enabled() {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}
	return storage.NewS3Uploader(ctx, storage.S3Config{
		Bucket:          s3cfg.Bucket,
		Region:          s3cfg.Region,
		Endpoint:        s3cfg.Endpoint,
		AccessKeyID:     s3cfg.AccessKeyID,
		SecretAccessKey: s3cfg.SecretAccessKey,
	})
}
