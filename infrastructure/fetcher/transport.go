package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsPinningTransport prevents DNS rebinding attacks by resolving DNS once,
// validating the IP, and connecting directly to that IP.
type dnsPinningTransport struct {
	base  *http.Transport
	check []HostCheckOption
}

func (t *dnsPinningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	hostname := req.URL.Hostname()

	result := CheckHost(hostname, t.check...)
	if !result.Allowed {
		return nil, fmt.Errorf("SSRF protection: %s", result.Reason)
	}

	resolvedIP := result.ResolvedIP
	if resolvedIP == "" {
		resolvedIP = hostname
	}

	port := req.URL.Port()
	if port == "" {
		port = "443"
		if req.URL.Scheme == "http" {
			port = "80"
		}
	}

	// Create transport pinned to resolved IP. It lives for one request, so
	// its connections must not outlive the response.
	pinned := t.base.Clone()
	pinned.DisableKeepAlives = true
	pinned.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return (&net.Dialer{}).DialContext(ctx, network, net.JoinHostPort(resolvedIP, port))
	}

	// Preserve original hostname for TLS SNI and certificate checks
	if pinned.TLSClientConfig == nil {
		pinned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	pinned.TLSClientConfig.ServerName = hostname

	return pinned.RoundTrip(req)
}

// newHTTPClient builds the client used by PolicyFetcher. Redirects are
// followed only while every hop stays on an allowed URL.
func newHTTPClient(cfg fetcherConfig, allowed func(url string) bool) *http.Client {
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	var rt http.RoundTripper = transport
	switch {
	case cfg.transport != nil:
		rt = cfg.transport
	case cfg.ssrfProtection:
		rt = &dnsPinningTransport{
			base:  transport,
			check: []HostCheckOption{WithAllowPrivate(cfg.allowPrivate)},
		}
	}

	return &http.Client{
		Timeout:       cfg.timeout,
		Transport:     rt,
		CheckRedirect: redirectPolicy(cfg.maxRedirects, allowed),
	}
}

func redirectPolicy(maxRedirects int, allowed func(url string) bool) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !allowed(req.URL.String()) {
			return fmt.Errorf("redirect to %s blocked by policy", req.URL.Redacted())
		}
		return nil
	}
}
