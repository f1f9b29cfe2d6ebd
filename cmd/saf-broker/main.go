// Command saf-broker runs untrusted WebAssembly components against a
// workspace directory, mediating every filesystem and network access through
// policy and recording each granted operation in a hash-chained audit log.
//
// Commands:
//
//	saf-broker run --component app.wasm   - run a component's start export
//	saf-broker demo                       - list the workspace and fetch the demo URL
//	saf-broker audit verify <file>        - recompute the audit chain
//	saf-broker audit tail <file>          - print the last entries
//	saf-broker workspace grant|restore|list
//	saf-broker config schema|show
package main

import (
	"fmt"
	"os"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "saf-broker:", err)
		os.Exit(1)
	}
}
