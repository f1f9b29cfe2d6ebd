// Package workspace grants the broker access to a workspace directory and
// restores earlier grants by token.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/entities"
	"github.com/secure-app-framework/saf-broker/domain/ports"
	"github.com/secure-app-framework/saf-broker/infrastructure/clock"
)

// ErrUnknownToken is returned by Restore for tokens no grant carries.
var ErrUnknownToken = errors.New("unknown workspace token")

type granterConfig struct {
	prompter ports.Prompter
	clock    ports.Clock
	newToken func() string
}

func defaultGranterConfig() granterConfig {
	return granterConfig{
		clock:    clock.Real(),
		newToken: uuid.NewString,
	}
}

// GranterOption configures a DirectoryGranter.
type GranterOption func(*granterConfig)

// WithPrompter requires interactive confirmation for every grant. Without a
// prompter, Grant is treated as already confirmed by the caller.
func WithPrompter(p ports.Prompter) GranterOption {
	return func(c *granterConfig) {
		c.prompter = p
	}
}

// WithClock sets the clock used for grant timestamps.
func WithClock(c ports.Clock) GranterOption {
	return func(cfg *granterConfig) {
		cfg.clock = c
	}
}

// WithTokenGenerator replaces the uuid token generator.
func WithTokenGenerator(fn func() string) GranterOption {
	return func(c *granterConfig) {
		c.newToken = fn
	}
}

var _ ports.WorkspaceGranter = (*DirectoryGranter)(nil)

// DirectoryGranter issues grants for local directories. Grants confirmed with
// "always", or made without a prompter, are persisted to the store; others
// last for the lifetime of the granter.
type DirectoryGranter struct {
	store  ports.WorkspaceStore
	config granterConfig

	mu      sync.Mutex
	session map[string]entities.WorkspaceGrant // by token
}

// NewDirectoryGranter creates a granter persisting to store.
func NewDirectoryGranter(store ports.WorkspaceStore, opts ...GranterOption) *DirectoryGranter {
	cfg := defaultGranterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &DirectoryGranter{
		store:   store,
		config:  cfg,
		session: make(map[string]entities.WorkspaceGrant),
	}
}

// Grant implements ports.WorkspaceGranter. An empty id gets a generated one.
func (g *DirectoryGranter) Grant(id, dir string) (*entities.WorkspaceGrant, error) {
	abs, err := checkDir(dir)
	if err != nil {
		return nil, err
	}

	persist := true
	if p := g.config.prompter; p != nil {
		if !p.IsInteractive() {
			return nil, fmt.Errorf("workspace %s: interactive confirmation required but no terminal is attached", abs)
		}
		granted, always, err := p.ConfirmWorkspace(abs)
		if err != nil {
			return nil, fmt.Errorf("confirm workspace: %w", err)
		}
		if !granted {
			return nil, &domainerrors.PolicyDeniedError{Kind: "workspace", Target: abs, Reason: "denied by user"}
		}
		persist = always
	}

	if id == "" {
		id = uuid.NewString()
	}
	grant := entities.WorkspaceGrant{
		ID:      id,
		Path:    abs,
		Token:   g.config.newToken(),
		Created: g.config.clock.Now().Unix(),
	}

	if persist {
		if err := g.store.Save(grant); err != nil {
			return nil, fmt.Errorf("persist workspace grant: %w", err)
		}
	}

	g.mu.Lock()
	g.session[grant.Token] = grant
	g.mu.Unlock()

	return &grant, nil
}

// Restore implements ports.WorkspaceGranter. The directory must still exist.
func (g *DirectoryGranter) Restore(token string) (*entities.WorkspaceGrant, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnknownToken
	}

	g.mu.Lock()
	grant, ok := g.session[token]
	g.mu.Unlock()

	if !ok {
		grants, err := g.store.Load()
		if err != nil {
			return nil, err
		}
		for _, candidate := range grants {
			if candidate.Token == token {
				grant, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return nil, ErrUnknownToken
	}

	if _, err := checkDir(grant.Path); err != nil {
		return nil, fmt.Errorf("workspace %q is no longer available: %w", grant.ID, err)
	}
	return &grant, nil
}

// List returns the persisted grants ordered by ID.
func (g *DirectoryGranter) List() ([]entities.WorkspaceGrant, error) {
	grants, err := g.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]entities.WorkspaceGrant, 0, len(grants))
	for _, grant := range grants {
		out = append(out, grant)
	}
	slices.SortFunc(out, func(a, b entities.WorkspaceGrant) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func checkDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("workspace directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", abs)
	}
	return abs, nil
}
