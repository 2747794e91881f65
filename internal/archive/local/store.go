// Package local archives snapshots on the local filesystem, for single-host
// deployments and development.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store writes snapshots under a base directory.
type Store struct {
	baseDir string
	prefix  string
}

// New creates a filesystem-backed snapshot archive, creating the base
// directory if it does not exist. The prefix, when set, is prepended to
// every object key, mirroring the GCS store.
func New(baseDir, prefix string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("creating base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("checking base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("archive path %q is not a directory", baseDir)
	}
	return &Store{baseDir: baseDir, prefix: prefix}, nil
}

// Put writes the snapshot to disk and returns a file:// URI.
func (s *Store) Put(_ context.Context, objectPath string, _ string, r io.Reader) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", fmt.Errorf("object path is required")
	}

	key := objectPath
	if s.prefix != "" {
		key = path.Join(s.prefix, objectPath)
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	// Reject keys that would escape the base directory.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("object path escapes archive directory")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
