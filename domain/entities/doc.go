// Package entities provides the broker's core domain records: audit entries,
// verification results, workspace grants and structured error details.
package entities
