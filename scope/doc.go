// Package scope provides the lifetime and confinement authority for segments.
//
// Each segment belongs to exactly one scope. Closing a scope runs its close
// actions, which free or unmap backing memory, and makes every segment in the
// scope inaccessible. There are four kinds:
//
//   - confined: usable only by the creating goroutine
//   - shared: usable by any goroutine; Close fails while an access is running
//   - implicit: shared, and closed automatically once unreachable
//   - global: always alive, never closes
//
// Dependencies between scopes are expressed with KeepAlive, and pinning from
// another goroutine with Acquire. A scope with outstanding dependents cannot
// be closed.
package scope
