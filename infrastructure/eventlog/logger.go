// Package eventlog connects the capability layer's Logger port to the
// hash-chained audit log, mirroring each event to operational logging.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/secure-app-framework/saf-broker/audit"
	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// Appender is the subset of *audit.Log the logger needs.
type Appender interface {
	Append(message string) error
}

var _ Appender = (*audit.Log)(nil)

var _ ports.Logger = (*AuditLogger)(nil)

// AuditLogger records events in an audit journal. Write failures are returned
// to the caller, never dropped.
type AuditLogger struct {
	journal Appender
	logger  *slog.Logger
}

// LoggerOption configures an AuditLogger.
type LoggerOption func(*AuditLogger)

// WithSlog mirrors every recorded event to logger at debug level.
func WithSlog(logger *slog.Logger) LoggerOption {
	return func(l *AuditLogger) {
		l.logger = logger
	}
}

// NewAuditLogger creates a Logger backed by journal.
func NewAuditLogger(journal Appender, opts ...LoggerOption) *AuditLogger {
	l := &AuditLogger{journal: journal}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Event implements ports.Logger.
func (l *AuditLogger) Event(ctx context.Context, message string) error {
	if err := l.journal.Append(message); err != nil {
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "audit write failed", "event", message, "error", err)
		}
		return err
	}
	if l.logger != nil {
		l.logger.DebugContext(ctx, "audit", "event", message)
	}
	return nil
}

var _ ports.DenialHandler = (*AuditDenialHandler)(nil)

// AuditDenialHandler records policy denials in the audit journal so blocked
// attempts leave a trace next to granted ones.
type AuditDenialHandler struct {
	Logger ports.Logger
}

// OnDenial implements ports.DenialHandler. The handler interface has no error
// return, so a failed write is reported through slog.
func (h *AuditDenialHandler) OnDenial(ctx context.Context, kind, target, reason string) {
	msg := fmt.Sprintf("policy.denied kind=%s target=%s reason=%s", kind, target, reason)
	if err := h.Logger.Event(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to record policy denial", "target", target, "error", err)
	}
}
