// Package memseg provides safe access to memory outside the Go heap.
//
// Native memory, memory-mapped files and Go arrays viewed as raw bytes are
// all exposed as bounds-checked segments whose lifetime is governed by an
// explicit scope rather than by the garbage collector.
//
// # Architecture Overview
//
//	memseg/       Root package with the Memory interface and the shared logger
//	├── errors/     Structured error types (bounds, lifetime, confinement, ...)
//	├── layout/     Immutable layout algebra: sizes, alignments, paths
//	├── scope/      Lifetime and goroutine-confinement authority
//	├── segment/    Bounds-checked views over native, mapped and heap memory
//	├── access/     Accessors derived from layouts: offsets, strides, alignment tiers
//	├── alloc/      Arena, prefix and per-request allocators
//	├── valist/     Sequential cursor over a segment of argument values
//	├── wasmmem/    Segments over WebAssembly linear memory (wazero)
//	├── witlayout/  Layouts for WIT types under the canonical ABI
//	└── cmd/segdump Hex and value dump of mapped files
//
// # Quick Start
//
//	sc := scope.NewConfined()
//	defer sc.Close()
//
//	points := layout.MustSequence(16, layout.MustStruct(
//		layout.Int32.WithName("x"),
//		layout.Int32.WithName("y"),
//	))
//
//	seg, err := segment.AllocateNativeLayout(points, sc)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	x, _ := access.ForLayout(points, layout.SequenceElements(), layout.GroupElement("x"))
//	for i := uint64(0); i < 16; i++ {
//		_ = access.Set(x, seg, int32(i), i)
//	}
//
// # Lifetimes
//
// Every segment belongs to a scope. Closing the scope frees or unmaps the
// backing memory and makes every segment in it inaccessible; later accesses
// fail with a lifetime error instead of touching freed memory. Closing twice
// is an error, never a no-op.
//
// # Thread Safety
//
// A confined scope and its segments may only be used by the goroutine that
// created the scope. A shared scope may be used by any goroutine; closing it
// fails while an access is in progress. Acquire pins a scope open from any
// goroutine until the acquired alias is closed.
package memseg
