// Package capability mediates every host resource a sandboxed component can
// reach. Each operation validates its input, delegates to a provider, records
// an audit event and returns. The context holds only provider references; it
// is immutable after construction and safe to share across goroutines.
package capability

import (
	"context"
	"errors"
	"fmt"
	"slices"

	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/paths"
	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// Context bundles the filesystem, network and logger providers a component
// is granted.
type Context struct {
	fs  ports.FileSystem
	net ports.Network
	log ports.Logger
}

// New creates a capability context. All three providers are required.
func New(fs ports.FileSystem, net ports.Network, log ports.Logger) (*Context, error) {
	switch {
	case fs == nil:
		return nil, errors.New("capability: filesystem provider is required")
	case net == nil:
		return nil, errors.New("capability: network provider is required")
	case log == nil:
		return nil, errors.New("capability: logger provider is required")
	}
	return &Context{fs: fs, net: net, log: log}, nil
}

// MustNew is like New but panics on a missing provider.
func MustNew(fs ports.FileSystem, net ports.Network, log ports.Logger) *Context {
	c, err := New(fs, net, log)
	if err != nil {
		panic(err)
	}
	return c
}

// ListDir returns the sorted, de-duplicated entry names of the workspace
// directory at path.
func (c *Context) ListDir(ctx context.Context, path string) ([]string, error) {
	p, err := paths.Sanitize(path)
	if err != nil {
		return nil, err
	}

	names, err := c.fs.ListDir(ctx, p.String())
	if err != nil {
		return nil, &domainerrors.FilesystemError{Operation: "list_dir", Path: p.String(), Err: err}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	if err := c.audit(ctx, fmt.Sprintf("fs.list_dir path=%s", p)); err != nil {
		return nil, err
	}
	return names, nil
}

// ReadText returns the content of the workspace file at path.
func (c *Context) ReadText(ctx context.Context, path string) (string, error) {
	p, err := paths.Sanitize(path)
	if err != nil {
		return "", err
	}

	content, err := c.fs.ReadText(ctx, p.String())
	if err != nil {
		return "", &domainerrors.FilesystemError{Operation: "read_text", Path: p.String(), Err: err}
	}

	if err := c.audit(ctx, fmt.Sprintf("fs.read_text path=%s bytes=%d", p, len(content))); err != nil {
		return "", err
	}
	return content, nil
}

// WriteText replaces the workspace file at path with content. The provider
// creates missing parent directories.
func (c *Context) WriteText(ctx context.Context, path, content string) error {
	p, err := paths.Sanitize(path)
	if err != nil {
		return err
	}

	if err := c.fs.WriteText(ctx, p.String(), content); err != nil {
		return &domainerrors.FilesystemError{Operation: "write_text", Path: p.String(), Err: err}
	}

	return c.audit(ctx, fmt.Sprintf("fs.write_text path=%s bytes=%d", p, len(content)))
}

// Fetch retrieves url through the network provider. The destination is not
// re-checked here; a provider that refuses it returns a policy denial, which
// is passed through as-is.
func (c *Context) Fetch(ctx context.Context, url string) (string, error) {
	body, err := c.net.GetText(ctx, url)
	if err != nil {
		var denied *domainerrors.PolicyDeniedError
		if errors.As(err, &denied) {
			return "", denied
		}
		return "", &domainerrors.NetworkError{Operation: "get_text", Target: url, Err: err}
	}

	if err := c.audit(ctx, fmt.Sprintf("net.get_text url=%s bytes=%d", url, len(body))); err != nil {
		return "", err
	}
	return body, nil
}

// Event records a component-originated message.
func (c *Context) Event(ctx context.Context, message string) error {
	return c.audit(ctx, "component.event "+message)
}

func (c *Context) audit(ctx context.Context, message string) error {
	err := c.log.Event(ctx, message)
	if err == nil {
		return nil
	}
	var auditErr *domainerrors.AuditWriteError
	if errors.As(err, &auditErr) {
		return auditErr
	}
	return &domainerrors.AuditWriteError{Operation: "write", Err: err}
}
