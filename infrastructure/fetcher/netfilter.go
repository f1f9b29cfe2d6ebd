package fetcher

import (
	"net"
)

// HostCheck is the outcome of validating a destination host.
type HostCheck struct {
	// Reason explains why the host was blocked (if not allowed).
	Reason string

	// ResolvedIP is the address the connection must be pinned to.
	ResolvedIP string

	// Allowed indicates whether the host is safe for outbound connections.
	Allowed bool
}

// HostCheckOption configures CheckHost.
type HostCheckOption func(*hostCheckConfig)

type hostCheckConfig struct {
	lookup         func(host string) ([]net.IP, error)
	blockPrivate   bool // Block RFC 1918 private addresses
	blockLocalhost bool // Block localhost/loopback
	resolveDNS     bool // Resolve hostnames before checking
}

// defaultHostCheckConfig blocks every SSRF-prone address class.
func defaultHostCheckConfig() hostCheckConfig {
	return hostCheckConfig{
		lookup:         net.LookupIP,
		blockPrivate:   true,
		blockLocalhost: true,
		resolveDNS:     true,
	}
}

// WithAllowPrivate permits private and loopback destinations. Only for
// deployments whose allowed domains legitimately resolve inside the network.
func WithAllowPrivate(allow bool) HostCheckOption {
	return func(c *hostCheckConfig) {
		c.blockPrivate = !allow
		c.blockLocalhost = !allow
	}
}

// WithResolveDNS enables/disables DNS resolution before checking.
func WithResolveDNS(resolve bool) HostCheckOption {
	return func(c *hostCheckConfig) {
		c.resolveDNS = resolve
	}
}

// WithLookup replaces the resolver used by CheckHost.
func WithLookup(fn func(host string) ([]net.IP, error)) HostCheckOption {
	return func(c *hostCheckConfig) {
		if fn != nil {
			c.lookup = fn
		}
	}
}

// CheckHost validates that host (a hostname or IP literal, no port) does not
// point at an internal address. The policy decides which domains may be
// fetched; this decides whether the address they resolve to may be dialled.
func CheckHost(host string, opts ...HostCheckOption) HostCheck {
	cfg := defaultHostCheckConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ip := net.ParseIP(host)
	if ip == nil && cfg.resolveDNS {
		ips, err := cfg.lookup(host)
		if err != nil {
			return HostCheck{Reason: "DNS resolution failed: " + err.Error()}
		}
		if len(ips) == 0 {
			return HostCheck{Reason: "DNS resolution returned no addresses"}
		}
		ip = ips[0]
	}

	if ip == nil {
		// Hostname-only mode: nothing to pin to.
		return HostCheck{Allowed: true}
	}

	if reason := blockedReason(ip, cfg); reason != "" {
		return HostCheck{Reason: reason}
	}
	return HostCheck{Allowed: true, ResolvedIP: ip.String()}
}

// blockedReason returns why ip may not be dialled, or "" if it may.
func blockedReason(ip net.IP, cfg hostCheckConfig) string {
	switch {
	case cfg.blockLocalhost && ip.IsLoopback():
		return "localhost/loopback addresses blocked"
	case cfg.blockPrivate && ip.IsPrivate():
		return "private addresses blocked (RFC 1918)"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local addresses blocked"
	case ip.IsMulticast():
		return "multicast addresses blocked"
	case ip.IsUnspecified():
		return "unspecified address blocked"
	}
	return ""
}
