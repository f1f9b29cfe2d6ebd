package ports

import "time"

// Clock supplies wall-clock time to the host bindings so tests can pin it.
type Clock interface {
	Now() time.Time
}
