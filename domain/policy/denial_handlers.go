package policy

import (
	"context"
	"log/slog"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// Ensure implementations satisfy the interface.
var _ ports.DenialHandler = (*SlogDenialHandler)(nil)
var _ ports.DenialHandler = (*NopDenialHandler)(nil)
var _ ports.DenialHandler = (MultiDenialHandler)(nil)

// SlogDenialHandler logs denials through slog at warn level.
type SlogDenialHandler struct {
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

func (h *SlogDenialHandler) OnDenial(ctx context.Context, kind, target, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "permission denied", "kind", kind, "target", target, "reason", reason)
}

// NopDenialHandler does nothing.
type NopDenialHandler struct{}

func (h *NopDenialHandler) OnDenial(ctx context.Context, kind, target, reason string) {}

// MultiDenialHandler fans a denial out to several handlers in order.
type MultiDenialHandler []ports.DenialHandler

func (m MultiDenialHandler) OnDenial(ctx context.Context, kind, target, reason string) {
	for _, h := range m {
		h.OnDenial(ctx, kind, target, reason)
	}
}
