package ports

import (
	"context"
)

// Logger records audit events. The capability context writes one event per
// successful mediated operation, and components reach it through log.event.
//
// Implementations must be safe for concurrent use and must report write
// failures instead of dropping them.
type Logger interface {
	Event(ctx context.Context, message string) error
}
