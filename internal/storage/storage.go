// Package storage provides persistence for fetched generation artifacts.
// It defines the Storage port and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for artifact storage. Fetched videos are
// written here to get a locally-addressable location; S3 publication is an
// optional extra step for final delivery.
type Storage interface {
	// SaveAsset writes an artifact under the given name and returns the
	// path it can be served from.
	SaveAsset(ctx context.Context, name string, data io.Reader) (path string, err error)

	// OpenAsset opens a stored artifact for reading.
	// The caller is responsible for closing the returned ReadCloser.
	OpenAsset(ctx context.Context, name string) (io.ReadCloser, error)

	// RemoveAssets deletes the named artifacts.
	// It continues even if some deletions fail.
	RemoveAssets(ctx context.Context, names []string) error

	// PublishToS3 uploads an artifact to S3 and returns the public URL.
	// Returns ErrS3NotConfigured when S3 is not configured.
	PublishToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
