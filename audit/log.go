// Package audit implements the append-only, hash-chained audit log.
//
// Every entry is one line, "<hex accumulator>|<message>", where the
// accumulator is the fold of the previous entry's value and the literal bytes
// of the message. Altering any past line breaks every value after it, which
// Verify detects by recomputing the fold.
package audit

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// fieldSeparator splits the accumulator from the message on each line.
const fieldSeparator = "|"

// recoverMessage follows a terminated partial line, chained from the last
// complete entry before it.
const recoverMessage = "audit.recover partial_line=terminated"

var escaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

var unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")

// Escape frames message onto a single line. The escaped form is what gets
// folded into the chain and written to disk.
func Escape(message string) string {
	return escaper.Replace(message)
}

// Unescape reverses Escape for display.
func Unescape(message string) string {
	return unescaper.Replace(message)
}

// logConfig holds configuration for the Log.
type logConfig struct {
	accumulator ports.Accumulator
	dirPerm     os.FileMode
	filePerm    os.FileMode
	fsync       bool
}

func defaultLogConfig() logConfig {
	return logConfig{
		accumulator: XXHash64(),
		dirPerm:     0o700,
		filePerm:    0o600,
		fsync:       true, // Every entry is durable before Append returns
	}
}

// LogOption configures a Log.
type LogOption func(*logConfig)

// WithAccumulator sets the chain strategy. The default is XXHash64.
func WithAccumulator(acc ports.Accumulator) LogOption {
	return func(c *logConfig) {
		if acc != nil {
			c.accumulator = acc
		}
	}
}

// WithFsync controls whether each Append syncs the file before returning.
// Default is true. Disable only for tests.
func WithFsync(enabled bool) LogOption {
	return func(c *logConfig) {
		c.fsync = enabled
	}
}

// WithFilePermissions sets the permissions of a newly created log file.
func WithFilePermissions(perm os.FileMode) LogOption {
	return func(c *logConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions of created parent directories.
func WithDirPermissions(perm os.FileMode) LogOption {
	return func(c *logConfig) {
		c.dirPerm = perm
	}
}

// Log is the append-only audit journal. All appends are serialized through
// one mutex covering fold, write and sync, so entries never interleave and
// are chained in the order Append calls complete.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	head   []byte
	config logConfig
	path   string
	dirty  bool // a write failed part-way; terminate the line before the next entry
	closed bool
}

// Open creates path and its parent directories if needed and opens the log
// for appending. Existing content is neither replayed nor validated: the
// chain continues from the accumulator of the last complete line.
func Open(path string, opts ...LogOption) (*Log, error) {
	cfg := defaultLogConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(filepath.Dir(path), cfg.dirPerm); err != nil {
		return nil, &domainerrors.AuditWriteError{Operation: "open", Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, cfg.filePerm)
	if err != nil {
		return nil, &domainerrors.AuditWriteError{Operation: "open", Path: path, Err: err}
	}

	l := &Log{file: f, config: cfg, path: path}

	head, partial, err := readTail(f, cfg.accumulator)
	if err != nil {
		_ = f.Close()
		return nil, &domainerrors.AuditWriteError{Operation: "open", Path: path, Err: err}
	}
	l.head = head

	if partial {
		slog.Warn("audit log ends in a partial line; terminating it", "path", path)
		l.dirty = true
		l.mu.Lock()
		err := l.writeLocked("", false)
		l.mu.Unlock()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return l, nil
}

// Append folds message into the chain and writes "<hex>|<message>\n",
// syncing before it returns. Newlines and backslashes in message are escaped
// first so an entry is always exactly one line.
func (l *Log) Append(message string) error {
	escaped := Escape(message)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return &domainerrors.AuditWriteError{Operation: "write", Path: l.path, Err: os.ErrClosed}
	}
	return l.writeLocked(escaped, true)
}

// writeLocked writes escaped as the next entry when entry is set. After a
// torn write the remnant line is terminated and followed by a recovery entry
// chained from the last complete entry, the only shape Verify accepts around
// a remnant.
func (l *Log) writeLocked(escaped string, entry bool) error {
	acc := l.config.accumulator
	next := l.head

	var b strings.Builder
	if l.dirty {
		next = acc.Fold(next, []byte(recoverMessage))
		b.WriteString("\n")
		writeEntry(&b, next, recoverMessage)
	}
	if entry {
		next = acc.Fold(next, []byte(escaped))
		writeEntry(&b, next, escaped)
	}

	if _, err := l.file.WriteString(b.String()); err != nil {
		l.dirty = true
		return &domainerrors.AuditWriteError{Operation: "write", Path: l.path, Err: err}
	}
	l.dirty = false
	l.head = next

	if l.config.fsync {
		if err := l.file.Sync(); err != nil {
			return &domainerrors.AuditWriteError{Operation: "sync", Path: l.path, Err: err}
		}
	}
	return nil
}

func writeEntry(b *strings.Builder, value []byte, escaped string) {
	b.WriteString(hex.EncodeToString(value))
	b.WriteString(fieldSeparator)
	b.WriteString(escaped)
	b.WriteString("\n")
}

// Head returns the hex accumulator of the most recent entry (the seed for an
// empty log).
func (l *Log) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return hex.EncodeToString(l.head)
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Accumulator returns the chain strategy in use.
func (l *Log) Accumulator() ports.Accumulator {
	return l.config.accumulator
}

// Close closes the underlying file. Further appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Close(); err != nil {
		return &domainerrors.AuditWriteError{Operation: "close", Path: l.path, Err: err}
	}
	return nil
}

// tailChunk is the read size used when scanning backwards for the last entry.
const tailChunk = 4096

// readTail finds the accumulator of the last complete, parseable line without
// reading the file front to back. partial reports a trailing line with no
// newline terminator.
func readTail(f *os.File, acc ports.Accumulator) (head []byte, partial bool, err error) {
	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat audit log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return acc.Seed(), false, nil
	}

	var tail []byte
	pos := size
	for {
		if v, ok := lastEntryValue(tail, pos == 0, acc.Size()); ok {
			return v, partial, nil
		}
		if pos == 0 {
			return acc.Seed(), partial, nil
		}

		n := int64(tailChunk)
		if n > pos {
			n = pos
		}
		pos -= n
		buf := make([]byte, n)
		if _, err := f.ReadAt(buf, pos); err != nil {
			return nil, false, fmt.Errorf("read audit log tail: %w", err)
		}
		if tail == nil {
			partial = buf[len(buf)-1] != '\n'
		}
		tail = append(buf, tail...)
	}
}

// lastEntryValue returns the decoded accumulator of the last complete line in
// tail that parses. When tail does not start at the beginning of the file its
// first line may be cut, so it is not considered.
func lastEntryValue(tail []byte, atStart bool, size int) ([]byte, bool) {
	if len(tail) == 0 {
		return nil, false
	}
	lines := strings.Split(string(tail), "\n")
	// The last element follows the final newline: empty or a partial line.
	lines = lines[:len(lines)-1]
	first := 0
	if !atStart {
		first = 1
	}
	for i := len(lines) - 1; i >= first; i-- {
		if v, _, ok := parseLine(lines[i], size); ok {
			return v, true
		}
	}
	return nil, false
}

// parseLine splits a line (without its newline) into the decoded accumulator
// and the stored message.
func parseLine(line string, size int) ([]byte, string, bool) {
	hexPart, message, ok := strings.Cut(line, fieldSeparator)
	if !ok || len(hexPart) != 2*size {
		return nil, "", false
	}
	v, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, "", false
	}
	return v, message, true
}
