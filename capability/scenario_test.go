package capability_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/secure-app-framework/saf-broker/audit"
	"github.com/secure-app-framework/saf-broker/capability"
	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/domain/policy"
	"github.com/secure-app-framework/saf-broker/domain/ports"
	"github.com/secure-app-framework/saf-broker/infrastructure/eventlog"
	"github.com/secure-app-framework/saf-broker/infrastructure/fetcher"
	"github.com/secure-app-framework/saf-broker/infrastructure/memfs"
	"github.com/secure-app-framework/saf-broker/infrastructure/osfs"
	"github.com/stretchr/testify/suite"
)

// unsortedFS returns directory entries out of order and duplicated.
type unsortedFS struct{ ports.FileSystem }

func (unsortedFS) ListDir(context.Context, string) ([]string, error) {
	return []string{"zeta", "alpha", "mid", "alpha", "zeta"}, nil
}

// ScenarioSuite drives the capability context with real providers and a real
// audit log.
type ScenarioSuite struct {
	suite.Suite
	ctx       context.Context
	auditPath string
	journal   *audit.Log
	logger    *eventlog.AuditLogger
	net       ports.Network
}

func (s *ScenarioSuite) SetupTest() {
	s.ctx = context.Background()
	s.auditPath = filepath.Join(s.T().TempDir(), "audit.log")

	journal, err := audit.Open(s.auditPath, audit.WithFsync(false))
	s.Require().NoError(err)
	s.journal = journal
	s.logger = eventlog.NewAuditLogger(journal)
	s.net = fetcher.NewStaticFetcher(
		policy.NewPolicy(policy.WithAllowedDomains("example.org"), policy.WithDenialHandler(&policy.NopDenialHandler{})),
		fetcher.DemoRoutes,
	)
}

func (s *ScenarioSuite) TearDownTest() {
	s.Require().NoError(s.journal.Close())
}

func (s *ScenarioSuite) messages() []string {
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

func (s *ScenarioSuite) TestDocsScenario() {
	fs := memfs.New().WithFiles(map[string]string{"docs/readme.txt": "read me first"})
	caps := capability.MustNew(fs, s.net, s.logger)

	names, err := caps.ListDir(s.ctx, "docs")
	s.Require().NoError(err)
	s.Equal([]string{"readme.txt"}, names)
	s.Require().Len(s.messages(), 1)
	s.Contains(s.messages()[0], "path=docs")

	content, err := caps.ReadText(s.ctx, "docs/readme.txt")
	s.Require().NoError(err)
	s.Equal("read me first", content)
	s.Require().Len(s.messages(), 2)
	s.Contains(s.messages()[1], "bytes=13")

	calls := fs.Calls()
	_, err = caps.ReadText(s.ctx, "../../etc/passwd")
	s.ErrorIs(err, domainerrors.ErrInvalidPath)
	s.Equal(calls, fs.Calls())
	s.Len(s.messages(), 2)

	result, err := audit.VerifyFile(s.auditPath, audit.XXHash64())
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Equal(2, result.EntriesChecked)
}

func (s *ScenarioSuite) TestOSWorkspace() {
	dir := s.T().TempDir()
	s.Require().NoError(os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "docs", "readme.txt"), []byte("hi"), 0o644))

	fs, err := osfs.Open(dir)
	s.Require().NoError(err)
	defer fs.Close()
	caps := capability.MustNew(fs, s.net, s.logger)

	s.Require().NoError(caps.WriteText(s.ctx, "docs/notes/today.txt", "line one\nline two"))
	names, err := caps.ListDir(s.ctx, "docs")
	s.Require().NoError(err)
	s.Equal([]string{"notes", "readme.txt"}, names)

	body, err := caps.Fetch(s.ctx, "https://example.org/data.json")
	s.Require().NoError(err)
	s.Equal(`{"example":true}`, body)

	_, err = caps.Fetch(s.ctx, "https://evil.example.org/x")
	s.ErrorIs(err, domainerrors.ErrPolicyDenied)

	s.Equal([]string{
		"fs.write_text path=docs/notes/today.txt bytes=17",
		"fs.list_dir path=docs",
		"net.get_text url=https://example.org/data.json bytes=16",
	}, s.messages())
}

func (s *ScenarioSuite) TestListDirSortsAndDeduplicates() {
	caps := capability.MustNew(unsortedFS{}, s.net, s.logger)

	names, err := caps.ListDir(s.ctx, "")
	s.Require().NoError(err)
	s.Equal([]string{"alpha", "mid", "zeta"}, names)
}

func (s *ScenarioSuite) TestEventMessagesStayOneLine() {
	caps := capability.MustNew(memfs.New(), s.net, s.logger)
	s.Require().NoError(caps.Event(s.ctx, "multi\nline\r\nevent"))

	data, err := os.ReadFile(s.auditPath)
	s.Require().NoError(err)
	s.Equal(1, strings.Count(string(data), "\n"))
	s.Equal(`component.event multi\nline\r\nevent`, s.messages()[0])
}

func TestScenarioSuite(t *testing.T) {
	suite.Run(t, new(ScenarioSuite))
}
