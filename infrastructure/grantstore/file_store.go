// Package grantstore persists workspace grants in a YAML file.
package grantstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/secure-app-framework/saf-broker/domain/entities"
	"github.com/secure-app-framework/saf-broker/domain/ports"
	"gopkg.in/yaml.v3"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string      // Path to the grants file
	dirPerm  os.FileMode // Permission for created directories
	filePerm os.FileMode // Permission for the grants file
}

func defaultFileStoreConfig() fileStoreConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return fileStoreConfig{
		path:     filepath.Join(home, ".saf-broker", "workspaces.yaml"),
		dirPerm:  0o700,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the grants file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the file permissions for the grants file.
// Default is 0o600 (user-only). Use with caution.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the directory permissions for the grants directory.
// Default is 0o700.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// grantFile is the on-disk layout.
type grantFile struct {
	Workspaces map[string]entities.WorkspaceGrant `yaml:"workspaces"`
}

var _ ports.WorkspaceStore = (*FileStore)(nil)

// FileStore provides file-based persistence for workspace grants.
type FileStore struct {
	mu     sync.Mutex
	config fileStoreConfig
}

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Load retrieves all grants keyed by ID.
func (s *FileStore) Load() (map[string]entities.WorkspaceGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() (map[string]entities.WorkspaceGrant, error) {
	data, err := os.ReadFile(s.config.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]entities.WorkspaceGrant{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read grant store: %w", err)
	}

	var file grantFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse grant store: %w", err)
	}
	if file.Workspaces == nil {
		file.Workspaces = map[string]entities.WorkspaceGrant{}
	}
	for id, g := range file.Workspaces {
		g.ID = id
		file.Workspaces[id] = g
	}
	return file.Workspaces, nil
}

// Save persists grant, replacing any grant with the same ID. The file is
// rewritten through a temporary file and rename.
func (s *FileStore) Save(grant entities.WorkspaceGrant) error {
	if grant.ID == "" {
		return errors.New("grant ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.load()
	if err != nil {
		return err
	}
	grants[grant.ID] = grant

	data, err := yaml.Marshal(grantFile{Workspaces: grants})
	if err != nil {
		return fmt.Errorf("failed to marshal grants: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create grant store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".workspaces-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write grant store: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write grant store: %w", err)
	}
	if err := tmp.Chmod(s.config.filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write grant store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write grant store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.config.path); err != nil {
		return fmt.Errorf("failed to write grant store: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the backing store.
func (s *FileStore) ConfigPath() string {
	return s.config.path
}
