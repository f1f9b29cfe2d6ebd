// Package osfs is the workspace filesystem provider backed by the host OS.
// All access goes through an os.Root, so symlinks and any other route out of
// the workspace directory are refused by the OS layer as well as by the path
// sanitizer in front of it.
package osfs

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

var _ ports.FileSystem = (*FS)(nil)

// FS serves sanitized workspace-relative paths from a single directory.
type FS struct {
	root *os.Root
	dir  string
}

// Open roots a provider at dir, which must exist.
func Open(dir string) (*FS, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open workspace %s: %w", dir, err)
	}
	return &FS{root: root, dir: dir}, nil
}

// Dir returns the workspace directory.
func (f *FS) Dir() string {
	return f.dir
}

// Close releases the workspace root.
func (f *FS) Close() error {
	return f.root.Close()
}

// ListDir implements ports.FileSystem.
func (f *FS) ListDir(ctx context.Context, p string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := f.root.Open(rootName(p))
	if err != nil {
		return nil, err
	}
	defer func() { _ = dir.Close() }()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// ReadText implements ports.FileSystem.
func (f *FS) ReadText(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := f.root.ReadFile(rootName(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText implements ports.FileSystem. Missing parent directories are
// created.
func (f *FS) WriteText(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if parent := path.Dir(p); parent != "." {
		if err := f.root.MkdirAll(parent, dirPerm); err != nil {
			return err
		}
	}
	return f.root.WriteFile(rootName(p), []byte(content), filePerm)
}

// rootName maps the workspace root ("") to the name os.Root expects.
func rootName(p string) string {
	if p == "" {
		return "."
	}
	return p
}
