// Package layout describes the shape of memory: sizes, alignments and
// offsets of primitive values, padding, sequences and struct/union groups.
//
// Layouts are immutable values measured in bits. Transformations such as
// WithName, WithBitAlignment or Map return new trees and never modify the
// receiver. Layouts are not tied to any scope or segment.
//
// # Kinds
//
//	Padding   occupies space, never dereferenced, natural alignment 8 bits
//	Value     a primitive read through a Carrier in a ByteOrder
//	Sequence  count repetitions of an element; unbounded when count is absent
//	Group     struct (members back to back) or union (members overlap)
//
// Structs do not insert padding. Callers describe padding explicitly:
//
//	point := layout.MustStruct(
//		layout.Int32.WithName("x"),
//		layout.MustPadding(32),
//		layout.Int64.WithName("y"),
//	)
//
// # Paths
//
// A path navigates a layout tree. Group elements select members by name,
// sequence elements select a fixed index, all elements, or a strided range:
//
//	off, _ := points.BitOffset(layout.SequenceElementAt(2), layout.GroupElement("x"))
//	plan, _ := points.Plan(layout.SequenceElements(), layout.GroupElement("x"))
//
// Elements that select all or a range of sequence elements add a free
// dimension: they have no static offset, and accessors derived from them take
// one index argument per free dimension.
//
// # Rendering
//
// String renders a compact, one-way debugging form: b32 (little endian), B32
// (big endian), x32 (padding), [5:b32] (sequence), [b32x32] (struct),
// [b32|b64] (union), with a (name) suffix and an A% prefix for overridden
// alignment.
package layout
