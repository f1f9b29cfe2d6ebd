package ports

import "context"

// NetworkPolicy decides which network destinations a component may reach.
// Fetchers consult it before any connection is made.
type NetworkPolicy interface {
	// IsURLAllowed reports whether url targets a permitted destination.
	IsURLAllowed(url string) bool

	// Check returns a *errors.PolicyDeniedError when url is not permitted,
	// notifying the configured DenialHandler.
	Check(ctx context.Context, url string) error

	// MaxBytes is the response-size bound fetchers must enforce.
	MaxBytes() int64
}
