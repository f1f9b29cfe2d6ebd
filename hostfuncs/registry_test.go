package hostfuncs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, payload []byte) ([]byte, error) {
	return nil, nil
}

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Empty(t, reg.Names())
	assert.Empty(t, reg.Namespaces())
}

func TestNewRegistry_WithByteHandler(t *testing.T) {
	echoHandler := func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}

	reg, err := NewRegistry(
		WithByteHandler("test.echo", echoHandler),
	)
	require.NoError(t, err)

	assert.True(t, reg.Has("test.echo"))
	assert.False(t, reg.Has("test.nonexistent"))
	assert.Equal(t, []string{"test.echo"}, reg.Names())
}

func TestNewRegistry_InvalidNames(t *testing.T) {
	tests := []struct {
		name    string
		opts    []RegistryOption
		wantErr string
	}{
		{"duplicate", []RegistryOption{WithByteHandler("a.b", noopHandler), WithByteHandler("a.b", noopHandler)}, "duplicate handler name"},
		{"empty", []RegistryOption{WithByteHandler("", noopHandler)}, "cannot be empty"},
		{"no module", []RegistryOption{WithByteHandler("echo", noopHandler)}, "<module>.<function>"},
		{"empty module", []RegistryOption{WithByteHandler(".echo", noopHandler)}, "<module>.<function>"},
		{"empty function", []RegistryOption{WithByteHandler("fs.", noopHandler)}, "<module>.<function>"},
		{"nil handler", []RegistryOption{WithByteHandler("fs.x", nil)}, "is nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHandlerRegistry_Invoke(t *testing.T) {
	echoHandler := func(ctx context.Context, payload []byte) ([]byte, error) {
		return append([]byte("echo:"), payload...), nil
	}

	reg, err := NewRegistry(
		WithByteHandler("test.echo", echoHandler),
	)
	require.NoError(t, err)

	t.Run("found handler", func(t *testing.T) {
		resp, err := reg.Invoke(context.Background(), "test.echo", []byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, "echo:hello", string(resp))
	})

	t.Run("not found handler", func(t *testing.T) {
		resp, err := reg.Invoke(context.Background(), "test.unknown", []byte("test"))
		assert.Nil(t, resp)

		var unknown *UnknownFunctionError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "test.unknown", unknown.Name)
		assert.Equal(t, 404, ErrorResponseFrom(err).Code)
	})
}

func TestHandlerRegistry_NamesAndNamespaces(t *testing.T) {
	reg, err := NewRegistry(
		WithByteHandler("time.now_unix_seconds", noopHandler),
		WithByteHandler("fs.write_text", noopHandler),
		WithByteHandler("fs.list_dir", noopHandler),
		WithByteHandler("net.get_text", noopHandler),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"fs.list_dir", "fs.write_text", "net.get_text", "time.now_unix_seconds"}, reg.Names())
	assert.Equal(t, map[string][]string{
		"fs":   {"list_dir", "write_text"},
		"net":  {"get_text"},
		"time": {"now_unix_seconds"},
	}, reg.Namespaces())

	// Names returns a copy.
	names := reg.Names()
	names[0] = "mutated"
	assert.Equal(t, "fs.list_dir", reg.Names()[0])
}

func TestHandlerRegistry_Invoke_SetsHostContext(t *testing.T) {
	var capturedName string
	handler := func(ctx context.Context, payload []byte) ([]byte, error) {
		if hc, ok := ctx.(HostContext); ok {
			capturedName = hc.FunctionName()
		}
		return nil, nil
	}

	reg, err := NewRegistry(
		WithByteHandler("log.event", handler),
	)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "log.event", nil)
	require.NoError(t, err)
	assert.Equal(t, "log.event", capturedName)
}

func TestSplitName(t *testing.T) {
	module, fn, ok := SplitName("fs.read_text")
	assert.True(t, ok)
	assert.Equal(t, "fs", module)
	assert.Equal(t, "read_text", fn)

	module, fn, ok = SplitName("a.b.c")
	assert.True(t, ok)
	assert.Equal(t, "a", module)
	assert.Equal(t, "b.c", fn)

	_, _, ok = SplitName("plain")
	assert.False(t, ok)
}
