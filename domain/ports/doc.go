// Package ports defines the interfaces the mediation core consumes.
// The core depends only on these abstractions; providers for the filesystem,
// network, audit logger, clock and randomness are supplied by the embedding
// application or by the adapters under infrastructure/.
package ports
