// Package segment provides bounds-checked views over native memory, mapped
// files and Go arrays.
//
// A Segment never outlives its scope. Every access goes through Deref, which
// checks in order: writes to read-only segments, bounds, scope liveness and
// goroutine confinement. Each failure has a distinct error kind.
//
//	sc := scope.NewConfined()
//	seg, err := segment.AllocateNative(64, 8, sc)
//	...
//	_ = seg.WriteU32(0, 42)
//	_ = sc.Close() // seg is now inaccessible and its memory is freed
//
// Slices share their parent's scope, so closing any view closes the backing
// resource. Acquire is the way to pin a segment open from another goroutine.
package segment
