package wazero

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/secure-app-framework/saf-broker/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ErrorMode selects how handler failures reach the guest.
type ErrorMode int

const (
	// ErrorModeTrap aborts the guest call with the handler's error.
	ErrorModeTrap ErrorMode = iota
	// ErrorModeResponse returns a JSON hostfuncs.ErrorResponse to the guest.
	ErrorModeResponse
)

// String returns the configuration name of the mode.
func (m ErrorMode) String() string {
	switch m {
	case ErrorModeTrap:
		return "trap"
	case ErrorModeResponse:
		return "response"
	default:
		return fmt.Sprintf("ErrorMode(%d)", int(m))
	}
}

// ParseErrorMode maps "trap" or "response" to an ErrorMode. The empty string
// selects ErrorModeTrap.
func ParseErrorMode(s string) (ErrorMode, error) {
	switch s {
	case "", "trap":
		return ErrorModeTrap, nil
	case "response":
		return ErrorModeResponse, nil
	default:
		return ErrorModeTrap, fmt.Errorf("unknown error mode %q", s)
	}
}

// AllocateExport is the guest export used to reserve response memory.
const AllocateExport = "allocate"

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// MaxRequestSize limits the size of incoming requests from guest memory.
	// Default is 1MB.
	MaxRequestSize uint32

	// ErrorMode selects trap or error-response delivery of handler failures.
	ErrorMode ErrorMode
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithMaxRequestSize sets the maximum request size from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithErrorMode sets how handler failures are delivered.
func WithErrorMode(mode ErrorMode) AdapterOption {
	return func(c *AdapterConfig) {
		c.ErrorMode = mode
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		MaxRequestSize: hostfuncs.DefaultMaxRequestSize,
		ErrorMode:      ErrorModeTrap,
	}
}

// RegisterWithRuntime instantiates one host module per handler namespace in
// registry.
//
// Example:
//
//	registry, _ := hostfuncs.NewRegistry(hostfuncs.WithBundle(imports.Bundle()))
//	err := wazero.RegisterWithRuntime(ctx, runtime, registry)
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	namespaces := registry.Namespaces()
	modules := make([]string, 0, len(namespaces))
	for module := range namespaces {
		modules = append(modules, module)
	}
	slices.Sort(modules)

	for _, module := range modules {
		builder := runtime.NewHostModuleBuilder(module)
		for _, fn := range namespaces[module] {
			name := module + "." + fn
			builder.NewFunctionBuilder().
				WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
					stack[0] = handleCall(ctx, mod, stack[0], registry, name, cfg)
				}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
				Export(fn)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate host module %q: %w", module, err)
		}
	}
	return nil
}

// handleCall serves one guest import call and returns the packed response.
func handleCall(ctx context.Context, mod api.Module, packed uint64, registry *hostfuncs.HandlerRegistry, name string, cfg AdapterConfig) uint64 {
	ptr, length := UnpackPtrLen(packed)

	if length > cfg.MaxRequestSize {
		err := &hostfuncs.RequestError{
			Err: fmt.Errorf("request size %d exceeds maximum %d bytes", length, cfg.MaxRequestSize),
		}
		return fail(ctx, mod, name, err, cfg.ErrorMode)
	}

	request, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return fail(ctx, mod, name, errors.New("failed to read request from guest memory"), cfg.ErrorMode)
	}

	response, err := registry.Invoke(ctx, name, request)
	if err != nil {
		return fail(ctx, mod, name, err, cfg.ErrorMode)
	}

	out, err := writeResponse(ctx, mod, response)
	if err != nil {
		return fail(ctx, mod, name, err, ErrorModeTrap)
	}
	return out
}

// fail delivers err to the guest according to mode. In trap mode it panics,
// which wazero turns into an error from the guest's exported call.
func fail(ctx context.Context, mod api.Module, name string, err error, mode ErrorMode) uint64 {
	if mode == ErrorModeTrap {
		slog.DebugContext(ctx, "wazero: trapping guest", "function", name, "error", err)
		panic(fmt.Errorf("%s: %w", name, err))
	}

	slog.WarnContext(ctx, "wazero: handler failed", "function", name, "error", err)
	out, werr := writeResponse(ctx, mod, hostfuncs.ErrorResponseFrom(err).ToJSON())
	if werr != nil {
		panic(fmt.Errorf("%s: %w", name, werr))
	}
	return out
}

// writeResponse allocates memory in the guest and writes data into it.
func writeResponse(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	allocateFn := mod.ExportedFunction(AllocateExport)
	if allocateFn == nil {
		return 0, fmt.Errorf("guest module missing %q export", AllocateExport)
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("guest allocate: %w", err)
	}
	if len(results) == 0 {
		return 0, errors.New("guest allocate returned no result")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if !mod.Memory().Write(ptr, data) {
		return 0, errors.New("failed to write response to guest memory")
	}

	return PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: Data length is bounded by guest memory
}

// PackPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen is the inverse of PackPtrLen.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
