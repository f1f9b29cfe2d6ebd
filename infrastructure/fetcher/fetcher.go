// Package fetcher provides the network providers behind net.get_text. Every
// provider here checks the URL against the network policy before any
// connection is attempted and bounds response bodies to the policy's
// MaxBytes.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// DefaultTimeout bounds a whole fetch, redirects and body included.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRedirects is the number of redirects PolicyFetcher follows.
const DefaultMaxRedirects = 5

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

type fetcherConfig struct {
	transport      http.RoundTripper
	logger         *slog.Logger
	timeout        time.Duration
	maxRedirects   int
	ssrfProtection bool
	allowPrivate   bool
}

func defaultFetcherConfig() fetcherConfig {
	return fetcherConfig{
		timeout:        DefaultTimeout,
		maxRedirects:   DefaultMaxRedirects,
		ssrfProtection: true,
	}
}

// Option configures a PolicyFetcher.
type Option func(*fetcherConfig)

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *fetcherConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRedirects sets how many redirects are followed. Zero disables them.
func WithMaxRedirects(n int) Option {
	return func(c *fetcherConfig) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// WithSSRFProtection pins each connection to a validated address. Enabled by
// default; allowPrivate additionally permits private and loopback ranges.
func WithSSRFProtection(enabled, allowPrivate bool) Option {
	return func(c *fetcherConfig) {
		c.ssrfProtection = enabled
		c.allowPrivate = allowPrivate
	}
}

// WithTransport replaces the HTTP transport, which also disables address
// pinning. Policy gating, redirect checks and body bounds still apply.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *fetcherConfig) {
		c.transport = rt
	}
}

// WithLogger sets the logger for truncation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *fetcherConfig) {
		c.logger = logger
	}
}

var _ ports.Network = (*PolicyFetcher)(nil)

// PolicyFetcher performs real HTTPS GETs for allowed URLs.
type PolicyFetcher struct {
	policy ports.NetworkPolicy
	client *http.Client
	logger *slog.Logger
}

// NewPolicyFetcher creates a fetcher gated by policy.
func NewPolicyFetcher(policy ports.NetworkPolicy, opts ...Option) *PolicyFetcher {
	cfg := defaultFetcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	client := newHTTPClient(cfg, policy.IsURLAllowed)
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PolicyFetcher{policy: policy, client: client, logger: logger}
}

// GetText implements ports.Network. A denied URL returns the policy's
// *errors.PolicyDeniedError without touching the network.
func (f *PolicyFetcher) GetText(ctx context.Context, url string) (string, error) {
	if err := f.policy.Check(ctx, url); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, truncated, err := readBounded(resp.Body, f.policy.MaxBytes())
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if truncated {
		f.logger.WarnContext(ctx, "response body truncated", "url", url, "max_bytes", f.policy.MaxBytes())
	}
	f.logger.DebugContext(ctx, "fetched", "url", url, "status", resp.StatusCode, "bytes", len(body), "latency", time.Since(start))

	return string(body), nil
}

// readBounded reads at most limit bytes and reports whether more remained.
func readBounded(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}
