// Package memfs provides an in-memory workspace filesystem. It counts every
// provider call so tests can assert that rejected input never reached it.
package memfs

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

var _ ports.FileSystem = (*FS)(nil)

// FS is an in-memory ports.FileSystem. The zero value is not usable; use New.
type FS struct {
	mu    sync.RWMutex
	files map[string]string
	dirs  map[string]struct{}

	calls atomic.Int64
}

// New returns an empty filesystem holding only the root directory.
func New() *FS {
	return &FS{
		files: make(map[string]string),
		dirs:  map[string]struct{}{"": {}},
	}
}

// WithFiles seeds the filesystem with files keyed by slash-separated path.
// Seeding does not count as a provider call.
func (m *FS) WithFiles(files map[string]string) *FS {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, content := range files {
		m.writeLocked(p, content)
	}
	return m
}

// Calls returns the number of provider calls made so far.
func (m *FS) Calls() int64 {
	return m.calls.Load()
}

// ListDir implements ports.FileSystem.
func (m *FS) ListDir(ctx context.Context, path string) ([]string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.dirs[path]; !ok {
		if _, isFile := m.files[path]; isFile {
			return nil, fmt.Errorf("list %q: not a directory", path)
		}
		return nil, fmt.Errorf("list %q: %w", path, fs.ErrNotExist)
	}

	var names []string
	for p := range m.files {
		if name, ok := childName(path, p); ok {
			names = append(names, name)
		}
	}
	for d := range m.dirs {
		if name, ok := childName(path, d); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// ReadText implements ports.FileSystem.
func (m *FS) ReadText(ctx context.Context, path string) (string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[path]
	if !ok {
		if _, isDir := m.dirs[path]; isDir {
			return "", fmt.Errorf("read %q: is a directory", path)
		}
		return "", fmt.Errorf("read %q: %w", path, fs.ErrNotExist)
	}
	return content, nil
}

// WriteText implements ports.FileSystem.
func (m *FS) WriteText(ctx context.Context, path, content string) error {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, isDir := m.dirs[path]; isDir {
		return fmt.Errorf("write %q: is a directory", path)
	}
	for parent := parentOf(path); parent != ""; parent = parentOf(parent) {
		if _, isFile := m.files[parent]; isFile {
			return fmt.Errorf("write %q: parent %q is a file", path, parent)
		}
	}
	m.writeLocked(path, content)
	return nil
}

func (m *FS) writeLocked(path, content string) {
	m.files[path] = content
	for parent := parentOf(path); parent != ""; parent = parentOf(parent) {
		m.dirs[parent] = struct{}{}
	}
}

// childName reports whether p is a direct child of dir and returns its name.
func childName(dir, p string) (string, bool) {
	if p == "" || p == dir {
		return "", false
	}
	rest := p
	if dir != "" {
		var ok bool
		rest, ok = strings.CutPrefix(p, dir+"/")
		if !ok {
			return "", false
		}
	}
	if strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func parentOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}
