package storage

import (
	"context"
	"fmt"
	"path"
	"time"
)

// Archive stores raw payloads (webhook bodies) for later audit.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects the archive backend. S3 is used when a bucket is set.
type Config struct {
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	LocalPath   string
}

// New returns an S3 archive when configured, otherwise a local directory archive.
func New(ctx context.Context, cfg Config) (Archive, error) {
	if cfg.S3Bucket != "" {
		return NewS3Archive(ctx, cfg)
	}
	dir := cfg.LocalPath
	if dir == "" {
		dir = "./data/archive"
	}
	return NewLocalArchive(dir)
}

// WebhookKey builds the object key for a raw webhook body, partitioned by day.
func WebhookKey(provider, reference string, at time.Time) string {
	at = at.UTC()
	return path.Join("webhooks", provider, at.Format("2006/01/02"), fmt.Sprintf("%s-%d.json", reference, at.UnixNano()))
}
