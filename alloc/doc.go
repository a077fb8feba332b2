// Package alloc provides allocators that hand out segments.
//
// Arena bump-allocates out of native blocks owned by a scope, Native maps one
// block per request, and Prefix recycles the leading bytes of a single
// segment. All of them inherit the confinement of their scope: an allocator
// over a confined scope fails when used from another goroutine.
package alloc
