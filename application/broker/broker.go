// Package broker assembles the capability stack from a BrokerConfig: the
// audit log, the network policy and fetcher, the workspace filesystem, the
// capability context and the host bindings.
package broker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/secure-app-framework/saf-broker/application/config"
	"github.com/secure-app-framework/saf-broker/audit"
	"github.com/secure-app-framework/saf-broker/capability"
	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/policy"
	"github.com/secure-app-framework/saf-broker/domain/ports"
	"github.com/secure-app-framework/saf-broker/host"
	"github.com/secure-app-framework/saf-broker/hostfuncs"
	"github.com/secure-app-framework/saf-broker/infrastructure/clock"
	"github.com/secure-app-framework/saf-broker/infrastructure/eventlog"
	"github.com/secure-app-framework/saf-broker/infrastructure/fetcher"
	"github.com/secure-app-framework/saf-broker/infrastructure/osfs"
	"github.com/secure-app-framework/saf-broker/infrastructure/random"
	wazeroadapter "github.com/secure-app-framework/saf-broker/infrastructure/wazero"
)

// DemoURL is the address the demo fetches.
const DemoURL = "https://example.org/data.json"

type brokerOptions struct {
	logger  *slog.Logger
	network ports.Network
	clock   ports.Clock
	random  ports.RandomSource
}

// Option overrides a collaborator the configuration would otherwise build.
type Option func(*brokerOptions)

// WithLogger sets the operational logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *brokerOptions) {
		o.logger = logger
	}
}

// WithNetwork replaces the configured fetcher.
func WithNetwork(n ports.Network) Option {
	return func(o *brokerOptions) {
		o.network = n
	}
}

// WithClock replaces the real clock behind time.now_unix_seconds.
func WithClock(c ports.Clock) Option {
	return func(o *brokerOptions) {
		o.clock = c
	}
}

// WithRandom replaces the source selected by random.mode.
func WithRandom(r ports.RandomSource) Option {
	return func(o *brokerOptions) {
		o.random = r
	}
}

// Broker owns one session: an open audit log and a workspace.
type Broker struct {
	cfg      config.BrokerConfig
	session  string
	logger   *slog.Logger
	journal  *audit.Log
	events   *eventlog.AuditLogger
	fs       *osfs.FS
	caps     *capability.Context
	registry *hostfuncs.HandlerRegistry
}

// New builds the stack described by cfg. The caller must Close the broker.
func New(cfg config.BrokerConfig, opts ...Option) (*Broker, error) {
	o := brokerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Workspace == "" {
		return nil, &domainerrors.ConfigError{Field: "workspace", Err: errors.New("required")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key, err := cfg.Audit.Key()
	if err != nil {
		return nil, err
	}
	acc, err := audit.AccumulatorByName(cfg.Audit.Accumulator, key)
	if err != nil {
		return nil, &domainerrors.ConfigError{Field: "audit.accumulator", Err: err}
	}

	if err := checkAuditOutsideWorkspace(cfg.Audit.Path, cfg.Workspace); err != nil {
		return nil, err
	}

	b := &Broker{cfg: cfg, session: uuid.NewString(), logger: o.logger}
	b.logger = b.logger.With("session", b.session)

	b.fs, err = osfs.Open(cfg.Workspace)
	if err != nil {
		return nil, err
	}

	b.journal, err = audit.Open(cfg.Audit.Path, audit.WithAccumulator(acc), audit.WithFsync(cfg.Audit.Fsync))
	if err != nil {
		_ = b.fs.Close()
		return nil, err
	}
	b.events = eventlog.NewAuditLogger(b.journal, eventlog.WithSlog(b.logger))

	if err := b.wire(o); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// checkAuditOutsideWorkspace rejects an audit log the component could reach
// through the fs imports.
func checkAuditOutsideWorkspace(auditPath, workspace string) error {
	ws, err := resolvePath(workspace)
	if err != nil {
		return &domainerrors.ConfigError{Field: "workspace", Err: err}
	}
	log, err := resolvePath(auditPath)
	if err != nil {
		return &domainerrors.ConfigError{Field: "audit.path", Err: err}
	}

	rel, err := filepath.Rel(ws, log)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return &domainerrors.ConfigError{
			Field: "audit.path",
			Err:   fmt.Errorf("%s is inside workspace %s", log, ws),
		}
	}
	return nil
}

// resolvePath makes p absolute and resolves symlinks in its longest existing
// prefix; the rest of p may not exist yet.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	existing, rest := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

func (b *Broker) wire(o brokerOptions) error {
	cfg := b.cfg

	netPolicy := policy.NewPolicy(
		policy.WithAllowedDomains(cfg.Network.AllowedDomains...),
		policy.WithMaxBytes(cfg.Network.MaxBytes),
		policy.WithDenialHandler(policy.MultiDenialHandler{
			&policy.SlogDenialHandler{Logger: b.logger},
			&eventlog.AuditDenialHandler{Logger: b.events},
		}),
	)

	network := o.network
	switch {
	case network != nil:
	case cfg.Network.Static:
		network = fetcher.NewStaticFetcher(netPolicy, fetcher.DemoRoutes)
	default:
		network = fetcher.NewPolicyFetcher(netPolicy,
			fetcher.WithTimeout(cfg.Network.TimeoutDuration()),
			fetcher.WithMaxRedirects(cfg.Network.MaxRedirects),
			fetcher.WithSSRFProtection(true, cfg.Network.AllowPrivate),
			fetcher.WithLogger(b.logger),
		)
	}

	caps, err := capability.New(b.fs, network, b.events)
	if err != nil {
		return err
	}
	b.caps = caps

	clk := o.clock
	if clk == nil {
		clk = clock.Real()
	}
	rnd := o.random
	if rnd == nil {
		rnd, err = random.FromMode(cfg.Random.Mode, cfg.Random.Seed)
		if err != nil {
			return &domainerrors.ConfigError{Field: "random.mode", Err: err}
		}
	}

	imports, err := hostfuncs.NewImports(caps, clk, rnd)
	if err != nil {
		return err
	}
	b.registry, err = hostfuncs.NewRegistry(
		hostfuncs.WithBundle(imports.Bundle()),
		hostfuncs.WithMiddleware(
			hostfuncs.PanicRecoveryMiddleware(),
			hostfuncs.LoggingMiddleware(b.logger),
		),
	)
	return err
}

// Session returns the identifier of this broker session.
func (b *Broker) Session() string {
	return b.session
}

// Capabilities returns the capability context.
func (b *Broker) Capabilities() *capability.Context {
	return b.caps
}

// Registry returns the host function registry components are linked against.
func (b *Broker) Registry() *hostfuncs.HandlerRegistry {
	return b.registry
}

// AuditPath returns the audit log location.
func (b *Broker) AuditPath() string {
	return b.journal.Path()
}

// Start records the session start in the audit log.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.events.Event(ctx, "broker.start"); err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "broker started", "workspace", b.fs.Dir(), "audit", b.journal.Path())
	return nil
}

// RunComponent loads a component and returns the result of its start export.
func (b *Broker) RunComponent(ctx context.Context, wasmBytes []byte) (string, error) {
	mode, err := wazeroadapter.ParseErrorMode(b.cfg.Engine.ErrorMode)
	if err != nil {
		return "", &domainerrors.ConfigError{Field: "engine.error_mode", Err: err}
	}

	executor, err := host.NewExecutor(ctx,
		host.WithHostFunctions(b.registry),
		host.WithWASI(b.cfg.Engine.WASI),
		host.WithMemoryLimitPages(b.cfg.Engine.MemoryLimitPages),
		host.WithAdapterOptions(
			wazeroadapter.WithErrorMode(mode),
			wazeroadapter.WithMaxRequestSize(b.cfg.Engine.MaxRequestSize),
		),
	)
	if err != nil {
		return "", err
	}
	defer func() { _ = executor.Close(ctx) }()

	component, err := executor.LoadComponent(ctx, wasmBytes)
	if err != nil {
		return "", err
	}
	return component.Start(ctx)
}

// RunComponentFile reads a component from path and runs it.
func (b *Broker) RunComponentFile(ctx context.Context, path string) (string, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read component: %w", err)
	}
	return b.RunComponent(ctx, wasmBytes)
}

// DemoReport is what Demo observed.
type DemoReport struct {
	Workspace  string
	Entries    []string
	ListErr    error
	FetchBytes int
	FetchErr   error
}

// Demo lists the workspace root and fetches DemoURL through the capability
// context. Operation failures are reported, not returned; only a failure to
// record the session start is fatal.
func (b *Broker) Demo(ctx context.Context) (DemoReport, error) {
	report := DemoReport{Workspace: b.fs.Dir()}
	if err := b.Start(ctx); err != nil {
		return report, err
	}

	report.Entries, report.ListErr = b.caps.ListDir(ctx, "")
	body, err := b.caps.Fetch(ctx, DemoURL)
	report.FetchBytes, report.FetchErr = len(body), err
	return report, nil
}

// Close releases the workspace and closes the audit log.
func (b *Broker) Close() error {
	var errs []error
	if b.journal != nil {
		errs = append(errs, b.journal.Close())
	}
	if b.fs != nil {
		errs = append(errs, b.fs.Close())
	}
	return errors.Join(errs...)
}
