// Package storage stores generated files (enrollment PDFs) on the local disk
// or an S3-compatible bucket, selected by STORAGE_DISK.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/carepath-academy/carepath/config"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("storage: object not found")

// Disk is implemented by every driver.
type Disk interface {
	Put(ctx context.Context, path string, content []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// URL returns the public URL for path (meaningful for public disks).
	URL(path string) string
}

// FromConfig returns the disk named by STORAGE_DISK.
func FromConfig(ctx context.Context) (Disk, error) {
	switch name := config.StorageDefault(); name {
	case "local", "":
		return NewLocal(config.StorageLocalRoot(), config.StorageURL())
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
}
