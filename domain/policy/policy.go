package policy

import (
	"context"
	"sort"
	"strings"

	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// DefaultMaxBytes bounds fetched response bodies (10MB).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// secureScheme is the only scheme a permitted URL may use.
const secureScheme = "https://"

// policyConfig holds configuration for the Policy engine.
type policyConfig struct {
	allowedDomains []string
	maxBytes       int64
	denialHandler  ports.DenialHandler
}

func defaultPolicyConfig() policyConfig {
	return policyConfig{
		allowedDomains: nil, // Secure default: nothing reachable
		maxBytes:       DefaultMaxBytes,
		denialHandler:  &SlogDenialHandler{},
	}
}

// PolicyOption configures the Policy.
type PolicyOption func(*policyConfig)

// WithAllowedDomains sets the exact domain names a component may fetch from.
// Matching is exact-string: no wildcards, suffixes or case folding.
func WithAllowedDomains(domains ...string) PolicyOption {
	return func(c *policyConfig) {
		c.allowedDomains = append(c.allowedDomains, domains...)
	}
}

// WithMaxBytes sets the maximum response size fetchers must enforce.
func WithMaxBytes(n int64) PolicyOption {
	return func(c *policyConfig) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithDenialHandler sets the denial handler.
func WithDenialHandler(h ports.DenialHandler) PolicyOption {
	return func(c *policyConfig) {
		if h != nil {
			c.denialHandler = h
		}
	}
}

// Policy holds the permitted network domains and the response-size bound.
// It is immutable after construction and safe for concurrent use.
type Policy struct {
	domains map[string]struct{}
	config  policyConfig
}

var _ ports.NetworkPolicy = (*Policy)(nil)

// NewPolicy creates a new Policy.
func NewPolicy(opts ...PolicyOption) *Policy {
	cfg := defaultPolicyConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	domains := make(map[string]struct{}, len(cfg.allowedDomains))
	for _, d := range cfg.allowedDomains {
		if d == "" {
			continue
		}
		domains[d] = struct{}{}
	}
	cfg.allowedDomains = nil

	return &Policy{domains: domains, config: cfg}
}

// IsURLAllowed reports whether url is "https://" followed by an allowed
// domain that is either the whole remainder or followed by "/".
func (p *Policy) IsURLAllowed(url string) bool {
	rest, ok := strings.CutPrefix(url, secureScheme)
	if !ok {
		return false
	}

	host := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host = rest[:i]
	}
	_, ok = p.domains[host]
	return ok
}

// Check returns a *errors.PolicyDeniedError when url is not permitted and
// reports the denial to the configured handler.
func (p *Policy) Check(ctx context.Context, url string) error {
	if p.IsURLAllowed(url) {
		return nil
	}

	reason := "domain not allowed"
	if !strings.HasPrefix(url, secureScheme) {
		reason = "scheme must be https"
	}
	p.config.denialHandler.OnDenial(ctx, "network", url, reason)
	return &domainerrors.PolicyDeniedError{Kind: "network", Target: url, Reason: reason}
}

// MaxBytes returns the response-size bound. The policy only carries it;
// the fetcher truncates.
func (p *Policy) MaxBytes() int64 {
	return p.config.maxBytes
}

// AllowedDomains returns the configured domains in sorted order.
func (p *Policy) AllowedDomains() []string {
	out := make([]string, 0, len(p.domains))
	for d := range p.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
