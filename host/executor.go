package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/secure-app-framework/saf-broker/hostfuncs"
	wazeroadapter "github.com/secure-app-framework/saf-broker/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// StartExport is the component entry point.
const StartExport = "start"

// Executor manages the lifecycle of WASM components.
type Executor struct {
	runtime          wazero.Runtime
	registry         *hostfuncs.HandlerRegistry
	wasi             bool
	memoryLimitPages uint32
	adapterOpts      []wazeroadapter.AdapterOption
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}

	// Default registry if not provided
	if e.registry == nil {
		reg, err := hostfuncs.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		e.registry = reg
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if e.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.memoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	e.runtime = rt

	if e.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
		}
	}

	if err := wazeroadapter.RegisterWithRuntime(ctx, rt, e.registry, e.adapterOpts...); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	slog.DebugContext(ctx, "executor ready", "imports", e.registry.Names(), "wasi", e.wasi)
	return e, nil
}

// Close releases resources held by the executor and every component it
// loaded.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Component is an instantiated WASM component.
type Component struct {
	module api.Module
}

// LoadComponent compiles and instantiates a component. A reactor-style
// "_initialize" export runs during instantiation; "_start" does not.
func (e *Executor) LoadComponent(ctx context.Context, wasmBytes []byte) (*Component, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile component: %w", err)
	}

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate component: %w", err)
	}
	return &Component{module: mod}, nil
}

// Start calls the component's "start" export and returns the string it
// produces. The export takes no parameters and returns a packed pointer and
// length into its own memory.
func (c *Component) Start(ctx context.Context) (string, error) {
	fn := c.module.ExportedFunction(StartExport)
	if fn == nil {
		return "", fmt.Errorf("export %q not found", StartExport)
	}

	results, err := fn.Call(ctx)
	if err != nil {
		return "", fmt.Errorf("component %s: %w", StartExport, err)
	}
	if len(results) == 0 {
		return "", errors.New("start returned no result")
	}

	ptr, length := wazeroadapter.UnpackPtrLen(results[0])
	if length == 0 {
		return "", nil
	}
	mem := c.module.Memory()
	if mem == nil {
		return "", errors.New("component exports no memory")
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return "", fmt.Errorf("start result [%d, +%d) is outside component memory", ptr, length)
	}
	return string(data), nil
}

// Close releases the component instance.
func (c *Component) Close(ctx context.Context) error {
	return c.module.Close(ctx)
}
