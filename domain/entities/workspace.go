package entities

// WorkspaceGrant records a directory the user granted to the broker, together
// with the opaque token that restores the grant in a later session.
type WorkspaceGrant struct {
	ID      string `json:"id" yaml:"id"`
	Path    string `json:"path" yaml:"path"`
	Token   string `json:"token" yaml:"token"`
	Created int64  `json:"created" yaml:"created"`
}
