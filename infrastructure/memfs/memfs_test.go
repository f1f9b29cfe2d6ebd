package memfs

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ListDir(t *testing.T) {
	m := New().WithFiles(map[string]string{
		"a.txt":          "a",
		"docs/b.txt":     "b",
		"docs/deep/c.md": "c",
	})
	ctx := context.Background()

	root, err := m.ListDir(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "docs"}, root)

	docs, err := m.ListDir(ctx, "docs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.txt", "deep"}, docs)

	_, err = m.ListDir(ctx, "missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = m.ListDir(ctx, "a.txt")
	assert.Error(t, err)

	assert.EqualValues(t, 4, m.Calls())
}

func TestFS_ReadWrite(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.WriteText(ctx, "out/nested/file.txt", "hello"))

	got, err := m.ReadText(ctx, "out/nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	names, err := m.ListDir(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, []string{"nested"}, names)

	_, err = m.ReadText(ctx, "out")
	assert.Error(t, err, "reading a directory")

	_, err = m.ReadText(ctx, "nope.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Error(t, m.WriteText(ctx, "out", "x"), "writing over a directory")
	assert.Error(t, m.WriteText(ctx, "out/nested/file.txt/child", "x"), "parent is a file")
}

func TestFS_CanceledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ListDir(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, m.Calls())
}
