// Package host runs untrusted WebAssembly components against the broker's
// import surface.
//
// It owns the wazero runtime, registers the host function registry through
// the infrastructure/wazero adapter and drives a component through its
// "start" export. Components get no ambient authority: WASI, when enabled,
// is instantiated with no preopened directories, no environment and no
// arguments.
package host
