package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// ErrInvalidAssetName is returned for names that would escape the asset
// directory.
var ErrInvalidAssetName = errors.New("invalid asset name")

// LocalStorage implements the Storage interface on local disk.
// Assets live flat in a single directory so an HTTP file server can expose
// them directly.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage instance rooted at dir.
// If dir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "promoreel")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the asset directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// assetPath resolves a name inside the asset directory, rejecting names
// with path separators or traversal.
func (s *LocalStorage) assetPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// SaveAsset writes the artifact to <dir>/<name> and returns the full path.
// The write goes through a temp file and rename so readers never observe a
// partial artifact.
func (s *LocalStorage) SaveAsset(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest, err := s.assetPath(name)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, ".partial_*")
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}
	tmpName := f.Name()

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write asset file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close asset file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("finalize asset file: %w", err)
	}

	return dest, nil
}

// OpenAsset opens a stored artifact for reading.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) OpenAsset(ctx context.Context, name string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	p, err := s.assetPath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p) // #nosec G304 - path is confined to the asset dir
	if err != nil {
		return nil, fmt.Errorf("open asset file: %w", err)
	}

	return f, nil
}

// RemoveAssets deletes the named artifacts. It continues even if some
// deletions fail, returning the first error encountered.
func (s *LocalStorage) RemoveAssets(ctx context.Context, names []string) error {
	var firstErr error
	for _, name := range names {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		p, err := s.assetPath(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove asset %s: %w", name, err)
			}
		}
	}
	return firstErr
}

// PublishToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) PublishToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
