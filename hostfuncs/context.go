package hostfuncs

import (
	"context"
)

// HostContext wraps a standard context.Context with the identity of the
// import being served, so middleware can label logs without parsing payloads.
type HostContext interface {
	context.Context

	// FunctionName returns the full import name, e.g. "fs.read_text".
	FunctionName() string
}

// hostContext is the concrete implementation of HostContext.
type hostContext struct {
	context.Context
	funcName string
}

// NewHostContext creates a new HostContext wrapping the given context.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{Context: ctx, funcName: funcName}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

// HostContextFrom returns ctx as a HostContext for funcName. A HostContext
// for a different function is re-wrapped so the name always matches the
// handler being invoked.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}
