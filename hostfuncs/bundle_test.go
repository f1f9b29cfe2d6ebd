package hostfuncs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/secure-app-framework/saf-broker/capability"
	domainerrors "github.com/secure-app-framework/saf-broker/domain/errors"
	"github.com/secure-app-framework/saf-broker/infrastructure/clock"
	"github.com/secure-app-framework/saf-broker/infrastructure/memfs"
	"github.com/secure-app-framework/saf-broker/infrastructure/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLogger struct{ events []string }

func (l *memLogger) Event(_ context.Context, message string) error {
	l.events = append(l.events, message)
	return nil
}

type deniedNetwork struct{}

func (deniedNetwork) GetText(_ context.Context, url string) (string, error) {
	if url == "https://example.org/data.json" {
		return "[1,2]", nil
	}
	return "", &domainerrors.PolicyDeniedError{Kind: "network", Target: url, Reason: "domain not allowed"}
}

type failingRandom struct{}

func (failingRandom) Fill([]byte) error   { return errors.New("no entropy") }
func (failingRandom) Deterministic() bool { return false }

func newTestRegistry(t *testing.T) (*HandlerRegistry, *memfs.FS, *memLogger) {
	t.Helper()
	fs := memfs.New().WithFiles(map[string]string{"docs/a.txt": "hello"})
	log := &memLogger{}
	caps := capability.MustNew(fs, deniedNetwork{}, log)

	imports, err := NewImports(caps, clock.Fake(time.Unix(1_700_000_000, 0)), random.Seeded(42))
	require.NoError(t, err)

	reg, err := NewRegistry(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithBundle(imports.Bundle()),
	)
	require.NoError(t, err)
	return reg, fs, log
}

func invoke[Resp any](t *testing.T, reg *HandlerRegistry, name string, req any) (Resp, error) {
	t.Helper()
	var resp Resp
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	out, err := reg.Invoke(context.Background(), name, payload)
	if err != nil {
		return resp, err
	}
	require.NoError(t, json.Unmarshal(out, &resp))
	return resp, nil
}

func TestNewImports_RequiresDependencies(t *testing.T) {
	caps := capability.MustNew(memfs.New(), deniedNetwork{}, &memLogger{})

	_, err := NewImports(caps, clock.Real(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "random source is required")

	_, err = NewImports(nil, clock.Real(), random.Seeded(1))
	assert.Error(t, err)

	_, err = NewImports(caps, nil, random.Seeded(1))
	assert.Error(t, err)
}

func TestImports_Bundle(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	assert.Equal(t, []string{
		FSListDir, FSReadText, FSWriteText,
		LogEvent, NetGetText, RandFill, TimeNowUnixSeconds,
	}, reg.Names())
	assert.Equal(t, map[string][]string{
		"fs":   {"list_dir", "read_text", "write_text"},
		"log":  {"event"},
		"net":  {"get_text"},
		"rand": {"fill"},
		"time": {"now_unix_seconds"},
	}, reg.Namespaces())
}

func TestImports_FS(t *testing.T) {
	reg, fs, log := newTestRegistry(t)

	listed, err := invoke[ListDirResponse](t, reg, FSListDir, ListDirRequest{Path: ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, listed.Entries)

	read, err := invoke[ReadTextResponse](t, reg, FSReadText, ReadTextRequest{Path: "docs/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", read.Content)

	_, err = invoke[WriteTextResponse](t, reg, FSWriteText, WriteTextRequest{Path: "out/b.txt", Content: "xyz"})
	require.NoError(t, err)
	content, err := fs.ReadText(context.Background(), "out/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "xyz", content)

	assert.Equal(t, []string{
		"fs.list_dir path=",
		"fs.read_text path=docs/a.txt bytes=5",
		"fs.write_text path=out/b.txt bytes=3",
	}, log.events)
}

func TestImports_ListDirJSON(t *testing.T) {
	reg, fs, _ := newTestRegistry(t)
	require.NoError(t, fs.WriteText(context.Background(), "empty/.keep", ""))

	out, err := reg.Invoke(context.Background(), FSListDir, []byte(`{"path":"docs/a.txt/.."}`))
	require.Error(t, err)
	assert.Nil(t, out)

	out, err = reg.Invoke(context.Background(), FSListDir, []byte(`{"path":"empty"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries":[".keep"]}`, string(out))
}

func TestImports_InvalidPathSurfacesAsError(t *testing.T) {
	reg, fs, log := newTestRegistry(t)

	_, err := invoke[ReadTextResponse](t, reg, FSReadText, ReadTextRequest{Path: "../secrets"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPath)
	assert.Equal(t, "INVALID_PATH", ErrorResponseFrom(err).Error)
	assert.Zero(t, fs.Calls())
	assert.Empty(t, log.events)
}

func TestImports_Net(t *testing.T) {
	reg, _, log := newTestRegistry(t)

	got, err := invoke[GetTextResponse](t, reg, NetGetText, GetTextRequest{URL: "https://example.org/data.json"})
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", got.Body)

	_, err = invoke[GetTextResponse](t, reg, NetGetText, GetTextRequest{URL: "https://evil.example.org/x"})
	assert.ErrorIs(t, err, domainerrors.ErrPolicyDenied)
	assert.Equal(t, 403, ErrorResponseFrom(err).Code)

	assert.Equal(t, []string{"net.get_text url=https://example.org/data.json bytes=5"}, log.events)
}

func TestImports_LogEvent(t *testing.T) {
	reg, _, log := newTestRegistry(t)

	_, err := invoke[LogEventResponse](t, reg, LogEvent, LogEventRequest{Message: "ready"})
	require.NoError(t, err)
	assert.Equal(t, []string{"component.event ready"}, log.events)
}

func TestImports_Time(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	out, err := reg.Invoke(context.Background(), TimeNowUnixSeconds, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"unix_seconds":1700000000}`, string(out))
}

func TestImports_RandFill(t *testing.T) {
	regA, _, _ := newTestRegistry(t)
	regB, _, _ := newTestRegistry(t)

	a, err := invoke[RandFillResponse](t, regA, RandFill, RandFillRequest{Length: 32})
	require.NoError(t, err)
	b, err := invoke[RandFillResponse](t, regB, RandFill, RandFillRequest{Length: 32})
	require.NoError(t, err)

	assert.Len(t, a.Bytes, 32)
	assert.Equal(t, a.Bytes, b.Bytes, "same seed gives same bytes")

	zero, err := invoke[RandFillResponse](t, regA, RandFill, RandFillRequest{Length: 0})
	require.NoError(t, err)
	assert.Empty(t, zero.Bytes)
}

func TestImports_RandFillBounds(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	for _, n := range []int{-1, MaxRandomBytes + 1} {
		_, err := invoke[RandFillResponse](t, reg, RandFill, RandFillRequest{Length: n})
		var reqErr *RequestError
		require.True(t, errors.As(err, &reqErr), "length %d", n)
		assert.Equal(t, 400, ErrorResponseFrom(err).Code)
	}

	_, err := invoke[RandFillResponse](t, reg, RandFill, RandFillRequest{Length: MaxRandomBytes})
	assert.NoError(t, err)
}

func TestImports_RandFillSourceError(t *testing.T) {
	caps := capability.MustNew(memfs.New(), deniedNetwork{}, &memLogger{})
	imports, err := NewImports(caps, clock.Real(), failingRandom{})
	require.NoError(t, err)

	reg, err := NewRegistry(WithBundle(imports.RandBundle()))
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), RandFill, []byte(`{"length":4}`))
	assert.ErrorContains(t, err, "no entropy")
}

func TestImports_MalformedRequest(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := reg.Invoke(context.Background(), FSReadText, []byte(`{"path":`))
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
}

func TestWithBundle_DuplicateAcrossBundles(t *testing.T) {
	caps := capability.MustNew(memfs.New(), deniedNetwork{}, &memLogger{})
	imports, err := NewImports(caps, clock.Real(), random.Seeded(1))
	require.NoError(t, err)

	_, err = NewRegistry(WithBundle(imports.FSBundle()), WithBundle(imports.FSBundle()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate handler name")
}

func TestWithHandler(t *testing.T) {
	type echoReq struct {
		Input string `json:"input"`
	}
	type echoResp struct {
		Output string `json:"output"`
	}

	reg, err := NewRegistry(
		WithHandler("custom.echo", func(ctx context.Context, req echoReq) (echoResp, error) {
			return echoResp{Output: req.Input}, nil
		}),
	)
	require.NoError(t, err)

	out, err := reg.Invoke(context.Background(), "custom.echo", []byte(`{"input":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"hi"}`, string(out))
}
