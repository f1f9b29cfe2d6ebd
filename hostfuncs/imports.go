package hostfuncs

import (
	"context"
	"errors"
	"fmt"

	"github.com/secure-app-framework/saf-broker/capability"
	"github.com/secure-app-framework/saf-broker/domain/ports"
)

// Import names a component can bind, in "<module>.<function>" form.
const (
	FSListDir          = "fs.list_dir"
	FSReadText         = "fs.read_text"
	FSWriteText        = "fs.write_text"
	NetGetText         = "net.get_text"
	LogEvent           = "log.event"
	TimeNowUnixSeconds = "time.now_unix_seconds"
	RandFill           = "rand.fill"
)

// MaxRandomBytes bounds a single rand.fill request (64 KiB).
const MaxRandomBytes = 64 * 1024

// DefaultMaxRequestSize limits the size of incoming requests (1MB).
// This prevents a malicious component from triggering OOM by claiming a huge request size.
const DefaultMaxRequestSize = 1 * 1024 * 1024

// ListDirRequest is the fs.list_dir payload.
type ListDirRequest struct {
	Path string `json:"path"`
}

// ListDirResponse holds the sorted entry names.
type ListDirResponse struct {
	Entries []string `json:"entries"`
}

// ReadTextRequest is the fs.read_text payload.
type ReadTextRequest struct {
	Path string `json:"path"`
}

// ReadTextResponse holds the file content.
type ReadTextResponse struct {
	Content string `json:"content"`
}

// WriteTextRequest is the fs.write_text payload.
type WriteTextRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteTextResponse is empty on success.
type WriteTextResponse struct{}

// GetTextRequest is the net.get_text payload.
type GetTextRequest struct {
	URL string `json:"url"`
}

// GetTextResponse holds the fetched body.
type GetTextResponse struct {
	Body string `json:"body"`
}

// LogEventRequest is the log.event payload.
type LogEventRequest struct {
	Message string `json:"message"`
}

// LogEventResponse is empty on success.
type LogEventResponse struct{}

// NowRequest is the (empty) time.now_unix_seconds payload.
type NowRequest struct{}

// NowResponse holds the current time as whole seconds since the Unix epoch.
type NowResponse struct {
	UnixSeconds int64 `json:"unix_seconds"`
}

// RandFillRequest is the rand.fill payload.
type RandFillRequest struct {
	Length int `json:"length"`
}

// RandFillResponse holds Length random bytes (base64 in JSON).
type RandFillResponse struct {
	Bytes []byte `json:"bytes"`
}

// Imports binds the component-facing import surface to a capability context,
// a clock and a random source. It holds references only; every import call
// is forwarded to the matching operation.
type Imports struct {
	caps   *capability.Context
	clock  ports.Clock
	random ports.RandomSource
}

// NewImports creates the bindings. The random source is required: whether a
// run is reproducible (seeded) or not (entropy) must be decided by the caller.
func NewImports(caps *capability.Context, clock ports.Clock, random ports.RandomSource) (*Imports, error) {
	switch {
	case caps == nil:
		return nil, errors.New("imports: capability context is required")
	case clock == nil:
		return nil, errors.New("imports: clock is required")
	case random == nil:
		return nil, errors.New("imports: random source is required; choose a seeded or entropy source explicitly")
	}
	return &Imports{caps: caps, clock: clock, random: random}, nil
}

// Bundle returns every import as a HostFuncBundle.
func (i *Imports) Bundle() HostFuncBundle {
	return Combine(i.FSBundle(), i.NetBundle(), i.LogBundle(), i.TimeBundle(), i.RandBundle())
}

// FSBundle returns fs.list_dir, fs.read_text and fs.write_text.
func (i *Imports) FSBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{
		FSListDir:   handle(i.listDir),
		FSReadText:  handle(i.readText),
		FSWriteText: handle(i.writeText),
	})
}

// NetBundle returns net.get_text.
func (i *Imports) NetBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{NetGetText: handle(i.getText)})
}

// LogBundle returns log.event.
func (i *Imports) LogBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{LogEvent: handle(i.logEvent)})
}

// TimeBundle returns time.now_unix_seconds.
func (i *Imports) TimeBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{TimeNowUnixSeconds: handle(i.now)})
}

// RandBundle returns rand.fill.
func (i *Imports) RandBundle() HostFuncBundle {
	return NewBundle(map[string]ByteHandler{RandFill: handle(i.fill)})
}

func (i *Imports) listDir(ctx context.Context, req ListDirRequest) (ListDirResponse, error) {
	entries, err := i.caps.ListDir(ctx, req.Path)
	if err != nil {
		return ListDirResponse{}, err
	}
	if entries == nil {
		entries = []string{}
	}
	return ListDirResponse{Entries: entries}, nil
}

func (i *Imports) readText(ctx context.Context, req ReadTextRequest) (ReadTextResponse, error) {
	content, err := i.caps.ReadText(ctx, req.Path)
	return ReadTextResponse{Content: content}, err
}

func (i *Imports) writeText(ctx context.Context, req WriteTextRequest) (WriteTextResponse, error) {
	return WriteTextResponse{}, i.caps.WriteText(ctx, req.Path, req.Content)
}

func (i *Imports) getText(ctx context.Context, req GetTextRequest) (GetTextResponse, error) {
	body, err := i.caps.Fetch(ctx, req.URL)
	return GetTextResponse{Body: body}, err
}

func (i *Imports) logEvent(ctx context.Context, req LogEventRequest) (LogEventResponse, error) {
	return LogEventResponse{}, i.caps.Event(ctx, req.Message)
}

func (i *Imports) now(_ context.Context, _ NowRequest) (NowResponse, error) {
	return NowResponse{UnixSeconds: i.clock.Now().Unix()}, nil
}

func (i *Imports) fill(_ context.Context, req RandFillRequest) (RandFillResponse, error) {
	if req.Length < 0 || req.Length > MaxRandomBytes {
		return RandFillResponse{}, &RequestError{
			Err: fmt.Errorf("rand.fill length %d out of range [0, %d]", req.Length, MaxRandomBytes),
		}
	}
	buf := make([]byte, req.Length)
	if err := i.random.Fill(buf); err != nil {
		return RandFillResponse{}, fmt.Errorf("rand.fill: %w", err)
	}
	return RandFillResponse{Bytes: buf}, nil
}
