// Package storage persists opaque blobs in single files: the bundle's
// storage file and the delivered bundle itself.
package storage

import (
	"fmt"
	"os"

	"github.com/reglet-dev/edge-agent/domain/ports"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     "storage.txt",
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path of the backing file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the permissions used when the file is created.
// Default is 0o600.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// FileStore keeps one blob in one file. The parent directory is never
// created; a missing directory is a write error.
type FileStore struct {
	config fileStoreConfig
}

var _ ports.FileStore = (*FileStore)(nil)

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Read returns the file contents. A missing file reads as empty.
func (s *FileStore) Read() ([]byte, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.config.path, err)
	}
	return data, nil
}

// Save overwrites the file with data.
func (s *FileStore) Save(data []byte) error {
	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.config.path, err)
	}
	return nil
}

// Path returns the path to the backing file.
func (s *FileStore) Path() string {
	return s.config.path
}
