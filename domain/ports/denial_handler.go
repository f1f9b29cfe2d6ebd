package ports

import "context"

// DenialHandler is called when a policy check denies a request.
// Implementations can log, audit, or take other actions.
type DenialHandler interface {
	// OnDenial is called when a capability request is denied.
	// kind: "network"
	// target: the denied destination (e.g. the URL)
	// reason: human-readable denial reason
	OnDenial(ctx context.Context, kind, target, reason string)
}
