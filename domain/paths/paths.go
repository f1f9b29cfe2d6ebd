// Package paths validates and normalizes the relative paths a sandboxed
// component supplies before any of them reaches a filesystem provider.
//
// Rejection is purely lexical: no filesystem I/O happens here, so traversal
// attempts are caught before any OS call is made.
package paths

import (
	"path/filepath"
	"strings"

	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
)

// Separator is the canonical separator of a SanitizedPath.
const Separator = "/"

// SanitizedPath is a validated, normalized, slash-separated relative path:
// no empty segments, no absolute prefix, no "." or ".." segments.
// Only Sanitize produces one; the zero value is the workspace root.
type SanitizedPath struct {
	rel string
}

// Root is the workspace root.
var Root = SanitizedPath{}

// Sanitize validates raw and returns its normalized form.
// The empty string is the workspace root. Both '/' and '\' separate segments.
func Sanitize(raw string) (SanitizedPath, error) {
	if raw == "" {
		return Root, nil
	}
	if isAbsolute(raw) {
		return SanitizedPath{}, invalid(raw, "absolute path")
	}

	segments := strings.Split(strings.ReplaceAll(raw, `\`, Separator), Separator)

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "..":
			return SanitizedPath{}, invalid(raw, "parent directory segment")
		case ".":
			continue
		case "":
			return SanitizedPath{}, invalid(raw, "empty segment")
		}
		if strings.IndexByte(seg, 0) >= 0 {
			return SanitizedPath{}, invalid(raw, "NUL byte in segment")
		}
		parts = append(parts, seg)
	}
	if len(parts) > 0 && isDriveName(parts[0]) {
		return SanitizedPath{}, invalid(raw, "drive name")
	}

	return SanitizedPath{rel: strings.Join(parts, Separator)}, nil
}

// MustSanitize is like Sanitize but panics on invalid input.
// Intended for constants in tests and fixtures.
func MustSanitize(raw string) SanitizedPath {
	p, err := Sanitize(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// isAbsolute rejects host-absolute paths plus the forms that are absolute on
// any platform we might be built for: a leading separator or a volume name.
func isAbsolute(raw string) bool {
	if filepath.IsAbs(raw) {
		return true
	}
	if raw[0] == '/' || raw[0] == '\\' {
		return true
	}
	return filepath.VolumeName(raw) != ""
}

// isDriveName matches a bare drive designator such as "C:", which would make
// the joined path drive-absolute on Windows hosts.
func isDriveName(seg string) bool {
	if len(seg) != 2 || seg[1] != ':' {
		return false
	}
	b := seg[0]
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func invalid(raw, reason string) error {
	return &domainerrors.InvalidPathError{Path: raw, Reason: reason}
}

// String returns the normalized relative path ("" for the root).
func (p SanitizedPath) String() string {
	return p.rel
}

// IsRoot reports whether p is the workspace root.
func (p SanitizedPath) IsRoot() bool {
	return p.rel == ""
}

// Segments returns the path segments in order; the root has none.
func (p SanitizedPath) Segments() []string {
	if p.rel == "" {
		return nil
	}
	return strings.Split(p.rel, Separator)
}

// Parent returns the containing directory. The root's parent is the root.
func (p SanitizedPath) Parent() SanitizedPath {
	i := strings.LastIndex(p.rel, Separator)
	if i < 0 {
		return Root
	}
	return SanitizedPath{rel: p.rel[:i]}
}

// Base returns the last segment, or "" for the root.
func (p SanitizedPath) Base() string {
	i := strings.LastIndex(p.rel, Separator)
	return p.rel[i+1:]
}

// Join appends raw, itself sanitized, below p.
func (p SanitizedPath) Join(raw string) (SanitizedPath, error) {
	child, err := Sanitize(raw)
	if err != nil {
		return SanitizedPath{}, err
	}
	switch {
	case child.IsRoot():
		return p, nil
	case p.IsRoot():
		return child, nil
	}
	return SanitizedPath{rel: p.rel + Separator + child.rel}, nil
}
