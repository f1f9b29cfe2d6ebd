package hostfuncs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/secure-app-framework/saf-broker/domain/entities"
	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
)

// ErrorResponse represents a structured error that can be returned as JSON to
// components. The engine adapter writes one in place of a trap when it runs in
// response mode.
type ErrorResponse struct {
	// Error is a machine-readable error type identifier (e.g., "INVALID_PATH", "POLICY_DENIED").
	Error string `json:"error"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Code is a numeric error code (e.g., 400, 500).
	Code int `json:"code"`

	// Detail is set for capability errors.
	Detail *entities.ErrorDetail `json:"detail,omitempty"`
}

// ToJSON serializes the ErrorResponse to JSON bytes.
// Returns nil if serialization fails (which should never happen for this simple type).
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// NewValidationError creates an error response for bad input (e.g., malformed JSON).
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Code:    400,
	}
}

// NewNotFoundError creates an error response for unknown handler names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{
		Error:   "NOT_FOUND",
		Message: "unknown host function: " + name,
		Code:    404,
	}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: message,
		Code:    500,
	}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	if err, ok := panicValue.(error); ok {
		msg = err.Error()
	} else if s, ok := panicValue.(string); ok {
		msg = s
	} else {
		msg = "panic recovered"
	}
	return ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "panic: " + msg,
		Code:    500,
	}
}

// UnknownFunctionError reports an invocation of a name no handler is
// registered under.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return "unknown host function: " + e.Name
}

// PanicError carries a panic recovered from a handler.
type PanicError struct {
	Value    any
	Function string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("host function %s panicked: %v", e.Function, e.Value)
}

// ErrorResponseFrom maps a handler error onto the response a component sees.
// Typed capability errors keep their identity; anything else is internal.
func ErrorResponseFrom(err error) ErrorResponse {
	var (
		invalidPath *domainerrors.InvalidPathError
		denied      *domainerrors.PolicyDeniedError
		fsErr       *domainerrors.FilesystemError
		netErr      *domainerrors.NetworkError
		auditErr    *domainerrors.AuditWriteError
		reqErr      *RequestError
		unknown     *UnknownFunctionError
		panicErr    *PanicError
	)

	switch {
	case err == nil:
		return NewInternalError("unknown error")
	case errors.As(err, &invalidPath):
		return ErrorResponse{Error: "INVALID_PATH", Message: invalidPath.Error(), Code: 400, Detail: invalidPath.ToErrorDetail()}
	case errors.As(err, &denied):
		return ErrorResponse{Error: "POLICY_DENIED", Message: denied.Error(), Code: 403, Detail: denied.ToErrorDetail()}
	case errors.As(err, &fsErr):
		return ErrorResponse{Error: "FS_ERROR", Message: fsErr.Error(), Code: 500, Detail: fsErr.ToErrorDetail()}
	case errors.As(err, &netErr):
		return ErrorResponse{Error: "NETWORK_ERROR", Message: netErr.Error(), Code: 502, Detail: netErr.ToErrorDetail()}
	case errors.As(err, &auditErr):
		return ErrorResponse{Error: "AUDIT_WRITE_ERROR", Message: auditErr.Error(), Code: 500, Detail: auditErr.ToErrorDetail()}
	case errors.As(err, &reqErr):
		return NewValidationError(reqErr.Error())
	case errors.As(err, &unknown):
		return NewNotFoundError(unknown.Name)
	case errors.As(err, &panicErr):
		return NewPanicError(panicErr.Value)
	default:
		return NewInternalError(err.Error())
	}
}
