package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // R2, MinIO, Spaces
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// S3Uploader ships database backups to a bucket and keeps the number of
// stored backups bounded.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader uses static credentials when given, otherwise the default
// AWS chain (env, shared config, instance role).
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "backups"
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (u *S3Uploader) ObjectKey(localPath string) string {
	return path.Join(u.prefix, filepath.Base(localPath))
}

// UploadFile uploads a local backup and returns its object key.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := u.ObjectKey(localPath)
	if err := u.put(ctx, key, f); err != nil {
		return "", err
	}
	return key, nil
}

func (u *S3Uploader) put(ctx context.Context, key string, body io.Reader) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/vnd.sqlite3"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PruneBackups deletes all but the newest keep backups under the prefix and
// returns the deleted keys.
func (u *S3Uploader) PruneBackups(ctx context.Context, keep int) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(u.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.bucket),
		Prefix: aws.String(u.prefix + "/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", u.prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	stale := BackupsToPrune(keys, keep)
	if len(stale) == 0 {
		return nil, nil
	}
	ids := make([]types.ObjectIdentifier, len(stale))
	for i, k := range stale {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}
	_, err := u.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(u.bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return stale, nil
}

// BackupsToPrune picks the backup keys beyond the newest keep. Backup names
// embed their timestamp, so lexical order is chronological. Keys that are
// not backups are never selected. keep <= 0 selects nothing.
func BackupsToPrune(keys []string, keep int) []string {
	if keep <= 0 {
		return nil
	}
	var backups []string
	for _, k := range keys {
		name := path.Base(k)
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, ".db") {
			backups = append(backups, k)
		}
	}
	if len(backups) <= keep {
		return nil
	}
	sort.Strings(backups)
	return backups[:len(backups)-keep]
}
