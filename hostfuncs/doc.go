// Package hostfuncs binds the component import surface (fs, net, log, time,
// rand) to the capability layer as JSON ByteHandlers. It has no WASM runtime
// dependencies; engine adapters read requests out of guest memory and call
// HandlerRegistry.Invoke.
package hostfuncs
