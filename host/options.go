package host

import (
	"github.com/secure-app-framework/saf-broker/hostfuncs"
	wazeroadapter "github.com/secure-app-framework/saf-broker/infrastructure/wazero"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithHostFunctions configures the executor with a host function registry.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(e *Executor) {
		e.registry = registry
	}
}

// WithWASI instantiates wasi_snapshot_preview1 so components built for WASI
// can load. It grants nothing beyond clocks and random numbers.
func WithWASI(enabled bool) Option {
	return func(e *Executor) {
		e.wasi = enabled
	}
}

// WithMemoryLimitPages caps component linear memory, in 64 KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(e *Executor) {
		e.memoryLimitPages = pages
	}
}

// WithAdapterOptions passes options through to the wazero adapter, such as
// wazeroadapter.WithErrorMode.
func WithAdapterOptions(opts ...wazeroadapter.AdapterOption) Option {
	return func(e *Executor) {
		e.adapterOpts = append(e.adapterOpts, opts...)
	}
}
