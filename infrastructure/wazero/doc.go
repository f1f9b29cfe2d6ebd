// Package wazero exposes a hostfuncs.HandlerRegistry to WebAssembly
// components running on the wazero runtime.
//
// Handler names take the form "<module>.<function>". Every module becomes one
// wazero host module, so a guest imports "fs"/"read_text", "net"/"get_text"
// and so on. All functions share one calling convention: a single i64
// parameter packing the request pointer (upper 32 bits) and length (lower 32
// bits) in guest memory, and an i64 result packing the JSON response the same
// way. Response memory is obtained from the guest's "allocate" export.
//
// A failing handler traps the guest by default. With
// WithErrorMode(ErrorModeResponse) the failure is instead encoded as a
// hostfuncs.ErrorResponse and returned like any other response.
package wazero
