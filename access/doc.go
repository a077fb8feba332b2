// Package access derives typed accessors from layouts.
//
// A Handle computes
//
//	address = base + offset + Σ coords[i] × strides[i]
//
// and reads or writes one carrier there. Handles come from a layout path,
// where each free dimension adds a coordinate, or from a raw carrier with
// Of. WithOffset and WithStride extend them.
//
// The operations an address permits depend on its alignment:
//
//   - aligned to max(size, alignment): every operation
//   - aligned to alignment only: Get and Set
//   - otherwise: nothing
//
// Atomic operations additionally need the native byte order and a 4 or 8
// byte carrier.
package access
