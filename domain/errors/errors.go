// Package errors provides the broker's error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"io/fs"

	"github.com/secure-app-framework/saf-broker/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrInvalidPath  = stdErrors.New("invalid or unsafe path")
	ErrPolicyDenied = stdErrors.New("blocked by policy")
)

// DetailedError is implemented by error types that can describe themselves
// as a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// InvalidPathError reports a component-supplied path that failed sanitization.
// No provider is ever called with such a path.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid or unsafe path %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid or unsafe path %q", e.Path)
}

// Is reports whether target is ErrInvalidPath.
func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// ToErrorDetail implements DetailedError.
func (e *InvalidPathError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: "invalid_path"}
}

// FilesystemError wraps a failure reported by the filesystem provider.
type FilesystemError struct {
	Err       error
	Operation string
	Path      string
}

func (e *FilesystemError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fs %s failed for %q: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("fs %s failed: %v", e.Operation, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *FilesystemError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "filesystem",
		Code:       e.Operation,
		IsNotFound: stdErrors.Is(e.Err, fs.ErrNotExist),
	}
}

// NetworkError wraps a failure reported by the network provider.
type NetworkError struct {
	Err       error
	Operation string
	Target    string
}

func (e *NetworkError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("network %s failed for %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("network %s failed: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// ToErrorDetail implements DetailedError.
func (e *NetworkError) ToErrorDetail() *entities.ErrorDetail {
	detail := &entities.ErrorDetail{Message: e.Error(), Type: "network", Code: e.Operation}
	if e.Timeout() {
		detail.Type = "timeout"
		detail.IsTimeout = true
	}
	return detail
}

// PolicyDeniedError reports a destination the policy does not permit.
// It is kept distinct from NetworkError so callers can tell "blocked" from
// "unreachable".
type PolicyDeniedError struct {
	Kind   string // "network"
	Target string
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s access to %s blocked by policy: %s", e.Kind, e.Target, e.Reason)
	}
	return fmt.Sprintf("%s access to %s blocked by policy", e.Kind, e.Target)
}

// Is reports whether target is ErrPolicyDenied.
func (e *PolicyDeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

// ToErrorDetail implements DetailedError.
func (e *PolicyDeniedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "capability", Code: "policy_denied"}
}

// AuditWriteError reports that the audit sink could not be opened, written or flushed.
// A gap in the audit trail is security relevant, so this is always surfaced.
type AuditWriteError struct {
	Err       error
	Operation string // "open", "write", "sync", "close"
	Path      string
}

func (e *AuditWriteError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("audit %s failed for %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("audit %s failed: %v", e.Operation, e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *AuditWriteError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "audit", Code: e.Operation}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}
