package ports

import (
	"context"
)

// FileSystem is the workspace filesystem provider supplied by the embedding
// application. Every path it receives has already been sanitized: relative,
// slash-separated, with no "." or ".." segments. The empty path is the
// workspace root.
//
// Implementations must be safe for concurrent use.
type FileSystem interface {
	// ListDir returns the names of the entries in the directory at path.
	// Order is unspecified.
	ListDir(ctx context.Context, path string) ([]string, error)

	// ReadText returns the content of the file at path.
	ReadText(ctx context.Context, path string) (string, error)

	// WriteText replaces the content of the file at path, creating any
	// missing parent directories.
	WriteText(ctx context.Context, path string, content string) error
}
