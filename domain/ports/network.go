package ports

import (
	"context"
)

// Network is the fetch provider supplied by the embedding application.
// Policy gating is the provider's job (or an enclosing layer's); the
// capability context does not re-check the destination.
//
// Implementations must be safe for concurrent use.
type Network interface {
	// GetText fetches url and returns the response body as text.
	GetText(ctx context.Context, url string) (string, error)
}
