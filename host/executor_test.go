package host_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/secure-app-framework/saf-broker/audit"
	"github.com/secure-app-framework/saf-broker/capability"
	"github.com/secure-app-framework/saf-broker/domain/policy"
	"github.com/secure-app-framework/saf-broker/host"
	"github.com/secure-app-framework/saf-broker/hostfuncs"
	"github.com/secure-app-framework/saf-broker/infrastructure/clock"
	"github.com/secure-app-framework/saf-broker/infrastructure/eventlog"
	"github.com/secure-app-framework/saf-broker/infrastructure/fetcher"
	"github.com/secure-app-framework/saf-broker/infrastructure/memfs"
	"github.com/secure-app-framework/saf-broker/infrastructure/random"
	wazeroadapter "github.com/secure-app-framework/saf-broker/infrastructure/wazero"
	"github.com/secure-app-framework/saf-broker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestNewExecutor(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx, host.WithWASI(true))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.NoError(t, e.Close(ctx))
}

func TestComponent_StartReturnsString(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx)
	require.NoError(t, err)
	defer e.Close(ctx)

	c, err := e.LoadComponent(ctx, testutil.Guest{Request: []byte("ready")}.Bytes())
	require.NoError(t, err)
	defer c.Close(ctx)

	out, err := c.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", out)
}

func TestLoadComponent_InvalidBinary(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx)
	require.NoError(t, err)
	defer e.Close(ctx)

	_, err = e.LoadComponent(ctx, []byte("not wasm"))
	assert.Error(t, err)
}

func TestLoadComponent_UnresolvedImport(t *testing.T) {
	ctx := context.Background()
	e, err := host.NewExecutor(ctx)
	require.NoError(t, err)
	defer e.Close(ctx)

	_, err = e.LoadComponent(ctx, testutil.Guest{ImportModule: "proc", ImportName: "exec"}.Bytes())
	assert.Error(t, err, "a component cannot import anything the broker does not provide")
}

// BrokerSuite runs components against the full import surface.
type BrokerSuite struct {
	suite.Suite
	ctx       context.Context
	auditPath string
	journal   *audit.Log
	fs        *memfs.FS
	registry  *hostfuncs.HandlerRegistry
}

func (s *BrokerSuite) SetupTest() {
	s.ctx = context.Background()
	s.auditPath = filepath.Join(s.T().TempDir(), "audit.log")

	journal, err := audit.Open(s.auditPath, audit.WithFsync(false))
	s.Require().NoError(err)
	s.journal = journal

	s.fs = memfs.New().WithFiles(map[string]string{"docs/a.txt": "hello"})
	logger := eventlog.NewAuditLogger(journal)
	p := policy.NewPolicy(policy.WithAllowedDomains("example.org"))
	net := fetcher.NewStaticFetcher(p, fetcher.DemoRoutes)

	caps, err := capability.New(s.fs, net, logger)
	s.Require().NoError(err)
	imports, err := hostfuncs.NewImports(caps, clock.Fake(time.Unix(1_700_000_000, 0)), random.Seeded(7))
	s.Require().NoError(err)

	s.registry, err = hostfuncs.NewRegistry(
		hostfuncs.WithBundle(imports.Bundle()),
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
	)
	s.Require().NoError(err)
}

func (s *BrokerSuite) TearDownTest() {
	s.Require().NoError(s.journal.Close())
}

func (s *BrokerSuite) run(guest testutil.Guest, opts ...host.Option) (string, error) {
	opts = append([]host.Option{host.WithHostFunctions(s.registry), host.WithWASI(true)}, opts...)
	e, err := host.NewExecutor(s.ctx, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = e.Close(s.ctx) })

	c, err := e.LoadComponent(s.ctx, guest.Bytes())
	s.Require().NoError(err)
	return c.Start(s.ctx)
}

func (s *BrokerSuite) auditMessages() []string {
	f, err := os.Open(s.auditPath)
	s.Require().NoError(err)
	defer f.Close()
	entries, err := audit.ReadEntries(f)
	s.Require().NoError(err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func (s *BrokerSuite) TestReadText() {
	out, err := s.run(testutil.Guest{
		ImportModule: "fs",
		ImportName:   "read_text",
		Request:      []byte(`{"path":"docs/a.txt"}`),
	})
	s.Require().NoError(err)
	s.JSONEq(`{"content":"hello"}`, out)
	s.Equal([]string{"fs.read_text path=docs/a.txt bytes=5"}, s.auditMessages())
}

func (s *BrokerSuite) TestWriteText() {
	out, err := s.run(testutil.Guest{
		ImportModule: "fs",
		ImportName:   "write_text",
		Request:      []byte(`{"path":"out/r.txt","content":"abc"}`),
	})
	s.Require().NoError(err)
	s.JSONEq(`{}`, out)

	got, err := s.fs.ReadText(s.ctx, "out/r.txt")
	s.Require().NoError(err)
	s.Equal("abc", got)
}

func (s *BrokerSuite) TestTraversalTraps() {
	_, err := s.run(testutil.Guest{
		ImportModule: "fs",
		ImportName:   "read_text",
		Request:      []byte(`{"path":"../../etc/passwd"}`),
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "fs.read_text")
	s.Zero(s.fs.Calls())
	s.Empty(s.auditMessages())
}

func (s *BrokerSuite) TestTraversalErrorResponse() {
	out, err := s.run(testutil.Guest{
		ImportModule: "fs",
		ImportName:   "read_text",
		Request:      []byte(`{"path":"../../etc/passwd"}`),
	}, host.WithAdapterOptions(wazeroadapter.WithErrorMode(wazeroadapter.ErrorModeResponse)))
	s.Require().NoError(err)

	var resp hostfuncs.ErrorResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	s.Equal("INVALID_PATH", resp.Error)
	s.Equal(400, resp.Code)
}

func (s *BrokerSuite) TestFetchDeniedByPolicy() {
	out, err := s.run(testutil.Guest{
		ImportModule: "net",
		ImportName:   "get_text",
		Request:      []byte(`{"url":"https://evil.example.com/x"}`),
	}, host.WithAdapterOptions(wazeroadapter.WithErrorMode(wazeroadapter.ErrorModeResponse)))
	s.Require().NoError(err)

	var resp hostfuncs.ErrorResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	s.Equal("POLICY_DENIED", resp.Error)
	s.Equal(403, resp.Code)
}

func (s *BrokerSuite) TestFetchAllowed() {
	out, err := s.run(testutil.Guest{
		ImportModule: "net",
		ImportName:   "get_text",
		Request:      []byte(`{"url":"https://example.org/data.json"}`),
	})
	s.Require().NoError(err)
	s.JSONEq(`{"body":"{\"example\":true}"}`, out)
	s.Equal([]string{"net.get_text url=https://example.org/data.json bytes=16"}, s.auditMessages())
}

func (s *BrokerSuite) TestClockAndRandom() {
	out, err := s.run(testutil.Guest{ImportModule: "time", ImportName: "now_unix_seconds"})
	s.Require().NoError(err)
	s.JSONEq(`{"unix_seconds":1700000000}`, out)

	out, err = s.run(testutil.Guest{
		ImportModule: "rand",
		ImportName:   "fill",
		Request:      []byte(`{"length":16}`),
	})
	s.Require().NoError(err)

	var resp hostfuncs.RandFillResponse
	s.Require().NoError(json.Unmarshal([]byte(out), &resp))
	s.Len(resp.Bytes, 16)
}

func (s *BrokerSuite) TestLogEvent() {
	_, err := s.run(testutil.Guest{
		ImportModule: "log",
		ImportName:   "event",
		Request:      []byte(`{"message":"component up"}`),
	})
	s.Require().NoError(err)
	s.Equal([]string{"component.event component up"}, s.auditMessages())

	result, err := audit.VerifyFile(s.auditPath, audit.XXHash64())
	s.Require().NoError(err)
	s.True(result.Valid)
}

func TestBrokerSuite(t *testing.T) {
	suite.Run(t, new(BrokerSuite))
}
