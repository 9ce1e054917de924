// Package must provides a single assertion helper for structural invariants
// that are bugs, not user error, when violated. Callers at a goroutine
// boundary (the errgroup worker pool) recover the panic and report it as a
// task failure rather than letting it escape silently.
package must

import "fmt"

// True panics with a formatted message if cond is false.
func True(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
