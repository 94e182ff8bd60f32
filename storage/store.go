// Package storage keeps converted results until they are downloaded or expire.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/drummonds/goconvert/config"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// ErrNotFound is returned when no object exists under a key
var ErrNotFound = errors.New("result not found")

// ResultStore holds conversion outputs keyed by "<jobID>/<filename>"
type ResultStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Name() string
}

// Key builds the object key for a job's output file
func Key(jobID, filename string) string {
	return jobID + "/" + path.Base(strings.ReplaceAll(filename, "\\", "/"))
}

// validKey rejects keys that could escape the store root
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid result key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid result key %q", key)
		}
	}
	return nil
}

// NewResultStore creates the store selected by STORAGE_TYPE
func NewResultStore(cfg config.ServerConfig) (ResultStore, error) {
	switch cfg.StorageType {
	case "", "file":
		return NewFileStore(cfg.ResultPath)
	case "s3":
		return NewMinioStore(context.Background(), MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q (supported: file, s3)", cfg.StorageType)
	}
}
