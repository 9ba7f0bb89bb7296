// Package storage publishes experiment artifacts (reports, observer sums,
// generated tables) to a local directory or an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for artifact operations.
var (
	ErrUploadFailed = errors.New("upload failed")
	ErrDeleteFailed = errors.New("delete failed")
)

// Backend names accepted by Open.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// ArtifactStore publishes artifact files to object storage.
type ArtifactStore interface {
	// Upload copies the file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Delete removes objectPath. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether objectPath is present.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns the object paths under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Config selects and configures an artifact backend.
type Config struct {
	Backend string `yaml:"type" json:"type"`

	// Path is the base directory of the local backend
	Path string `yaml:"path" json:"path"`

	Bucket       string `yaml:"s3_bucket" json:"s3_bucket"`
	Region       string `yaml:"s3_region" json:"s3_region"`
	Endpoint     string `yaml:"s3_endpoint" json:"s3_endpoint"`
	UsePathStyle bool   `yaml:"s3_path_style" json:"s3_path_style"`
}

// Open creates the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocalStorage(cfg.Path)
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 backend needs a bucket")
		}
		return NewS3Storage(ctx, cfg.Bucket, S3Config{
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
