package ports

import "github.com/secure-app-framework/saf-broker/domain/entities"

// WorkspaceGranter grants the broker access to a workspace directory.
// It models the platform directory picker and its persisted handles as an
// external collaborator: it hands back a path plus an opaque token that can
// restore the grant later.
type WorkspaceGranter interface {
	// Grant asks for access to dir and returns the resulting grant.
	Grant(id, dir string) (*entities.WorkspaceGrant, error)

	// Restore resolves a token issued by Grant back to its workspace.
	Restore(token string) (*entities.WorkspaceGrant, error)
}

// WorkspaceStore provides persistence for workspace grants.
type WorkspaceStore interface {
	// Load retrieves all grants, keyed by grant ID.
	// Returns an empty map (not an error) if nothing has been stored.
	Load() (map[string]entities.WorkspaceGrant, error)

	// Save persists a single grant, replacing any grant with the same ID.
	Save(grant entities.WorkspaceGrant) error

	// ConfigPath returns the path to the backing store (for user messaging).
	ConfigPath() string
}
