package audit

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/secure-app-framework/saf-broker/domain/entities"
	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// maxLineSize bounds a single audit line during verification.
const maxLineSize = 16 * 1024 * 1024

// Chain returns the accumulator sequence produced by folding messages, in
// order, from the strategy's seed. Messages are escaped exactly as Append
// escapes them.
func Chain(acc ports.Accumulator, messages []string) []string {
	out := make([]string, 0, len(messages))
	state := acc.Seed()
	for _, m := range messages {
		state = acc.Fold(state, []byte(Escape(m)))
		out = append(out, hex.EncodeToString(state))
	}
	return out
}

// VerifyFile opens path read-only and verifies it.
func VerifyFile(path string, acc ports.Accumulator) (entities.VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return entities.VerifyResult{}, fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Verify(f, acc)
}

// Verify recomputes the chain over r and reports the first entry whose stored
// value does not match.
//
// Two kinds of line are recorded as unverifiable instead of breaking the
// chain: a final line with no newline, and a remnant of a torn write that is
// immediately followed by the recovery entry Open or Append writes, chained
// from the state before the remnant. Any other malformed or mismatching line
// breaks the chain.
func Verify(r io.Reader, acc ports.Accumulator) (entities.VerifyResult, error) {
	var result entities.VerifyResult

	state := acc.Seed()

	type suspect struct {
		line     int
		expected []byte
		actual   []byte
	}
	var remnant *suspect

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLinesKeepPartial)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()

		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			// Only the last token can lack a newline.
			if remnant != nil {
				return broken(result, remnant.line, remnant.expected, remnant.actual, state), nil
			}
			result.Unverifiable = append(result.Unverifiable, lineNo)
			continue
		}
		line := string(raw[:len(raw)-1])

		stored, message, ok := parseLine(line, acc.Size())
		var next []byte
		if ok {
			next = acc.Fold(state, []byte(message))
		}
		matches := ok && bytes.Equal(next, stored)

		if remnant != nil {
			if !matches || message != recoverMessage {
				return broken(result, remnant.line, remnant.expected, remnant.actual, state), nil
			}
			result.Unverifiable = append(result.Unverifiable, remnant.line)
			remnant = nil
		}

		if matches {
			state = next
			result.EntriesChecked++
			continue
		}
		if next == nil {
			next = acc.Fold(state, []byte(line))
		}
		remnant = &suspect{line: lineNo, expected: next, actual: stored}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read audit log: %w", err)
	}

	if remnant != nil {
		return broken(result, remnant.line, remnant.expected, remnant.actual, state), nil
	}

	result.Valid = true
	result.Head = hex.EncodeToString(state)
	return result, nil
}

func broken(result entities.VerifyResult, line int, expected, actual, head []byte) entities.VerifyResult {
	result.Valid = false
	result.BrokenAt = line
	result.ExpectedAccumulator = hex.EncodeToString(expected)
	result.ActualAccumulator = hex.EncodeToString(actual)
	result.Head = hex.EncodeToString(head)
	return result
}

// ReadEntries parses every complete, well-formed line of r. Malformed and
// trailing partial lines are skipped.
func ReadEntries(r io.Reader) ([]entities.AuditEntry, error) {
	var entries []entities.AuditEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLinesKeepPartial)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			continue
		}
		hexPart, message, ok := bytes.Cut(raw[:len(raw)-1], []byte(fieldSeparator))
		if !ok || len(hexPart) == 0 {
			continue
		}
		if _, err := hex.DecodeString(string(hexPart)); err != nil {
			continue
		}
		entries = append(entries, entities.AuditEntry{
			Line:        lineNo,
			Accumulator: string(hexPart),
			Message:     string(message),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}

// Tail returns the last n entries of r.
func Tail(r io.Reader, n int) ([]entities.AuditEntry, error) {
	entries, err := ReadEntries(r)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// scanLinesKeepPartial is bufio.ScanLines without stripping the terminator,
// so callers can tell a complete line from a trailing partial one.
func scanLinesKeepPartial(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
