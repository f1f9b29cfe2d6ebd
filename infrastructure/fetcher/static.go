package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// DemoRoutes are the fixed responses the demo command serves.
var DemoRoutes = map[string]string{
	"https://example.org/data.json": `{"example":true}`,
}

var _ ports.Network = (*StaticFetcher)(nil)

// StaticFetcher answers allowed URLs from a fixed route table without any
// network access. It backs the demo command and offline component runs.
type StaticFetcher struct {
	policy ports.NetworkPolicy
	routes map[string]string
}

// NewStaticFetcher creates a fetcher serving routes, gated by policy.
func NewStaticFetcher(policy ports.NetworkPolicy, routes map[string]string) *StaticFetcher {
	return &StaticFetcher{policy: policy, routes: maps.Clone(routes)}
}

// GetText implements ports.Network.
func (f *StaticFetcher) GetText(ctx context.Context, url string) (string, error) {
	if err := f.policy.Check(ctx, url); err != nil {
		return "", err
	}

	body, ok := f.routes[url]
	if !ok {
		return "", fmt.Errorf("GET %s: no static route", url)
	}

	out, truncated, _ := readBounded(strings.NewReader(body), f.policy.MaxBytes())
	if truncated {
		slog.WarnContext(ctx, "response body truncated", "url", url, "max_bytes", f.policy.MaxBytes())
	}
	return string(out), nil
}
