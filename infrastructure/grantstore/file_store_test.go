package grantstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/secure-app-framework/saf-broker/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := NewFileStore(WithPath(filepath.Join(t.TempDir(), "none.yaml")))

	grants, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workspaces.yaml")
	s := NewFileStore(WithPath(path))
	assert.Equal(t, path, s.ConfigPath())

	a := entities.WorkspaceGrant{ID: "docs", Path: "/home/u/docs", Token: "tok-a", Created: 100}
	b := entities.WorkspaceGrant{ID: "src", Path: "/home/u/src", Token: "tok-b", Created: 200}
	require.NoError(t, s.Save(a))
	require.NoError(t, s.Save(b))

	grants, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]entities.WorkspaceGrant{"docs": a, "src": b}, grants)

	// Replacing by ID keeps a single entry.
	a.Token = "tok-a2"
	require.NoError(t, s.Save(a))
	grants, err = s.Load()
	require.NoError(t, err)
	assert.Len(t, grants, 2)
	assert.Equal(t, "tok-a2", grants["docs"].Token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workspaces:")
}

func TestFileStore_SaveRequiresID(t *testing.T) {
	s := NewFileStore(WithPath(filepath.Join(t.TempDir(), "w.yaml")))
	assert.Error(t, s.Save(entities.WorkspaceGrant{Path: "/x"}))
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspaces: [not, a, map"), 0o600))

	s := NewFileStore(WithPath(path), WithFilePermissions(0o640), WithDirPermissions(0o750))
	_, err := s.Load()
	assert.ErrorContains(t, err, "failed to parse grant store")
}
