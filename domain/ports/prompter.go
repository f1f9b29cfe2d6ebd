package ports

// Prompter handles interactive authorization of workspace grants.
type Prompter interface {
	// IsInteractive returns true if running in an interactive terminal.
	IsInteractive() bool

	// ConfirmWorkspace asks the user to grant access to dir.
	// Returns: granted (allow this session), always (persist the grant), error.
	ConfirmWorkspace(dir string) (granted bool, always bool, err error)
}
