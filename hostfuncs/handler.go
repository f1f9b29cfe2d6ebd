package hostfuncs

import (
	"context"
	"encoding/json"
	"fmt"
)

// HostFunc is a generic function signature for host functions.
// It accepts a context and a typed request, and returns a typed response or
// an error. Errors are handed back to the engine adapter, which decides
// whether they trap the component or become an ErrorResponse.
type HostFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// ByteHandler is a function that accepts raw bytes (JSON) and returns raw bytes (JSON).
// This is the common interface that WASM runtimes can easily use.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// RequestError reports a request payload that could not be decoded.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("failed to unmarshal request: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewJSONHandler wraps a typed HostFunc into a ByteHandler.
// It handles the JSON unmarshalling of the request and marshalling of the
// response. An empty payload decodes to the zero request, which lets
// argument-less imports such as time.now_unix_seconds send nothing.
//
// Usage:
//
//	readHandler := hostfuncs.NewJSONHandler(func(ctx context.Context, req hostfuncs.ReadTextRequest) (hostfuncs.ReadTextResponse, error) {
//	    content, err := caps.ReadText(ctx, req.Path)
//	    return hostfuncs.ReadTextResponse{Content: content}, err
//	})
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, &RequestError{Err: err}
			}
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}

		return respBytes, nil
	}
}
