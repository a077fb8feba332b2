// Package wasmmem exposes WebAssembly linear memory as segments.
//
// Wrap adapts a wazero memory to the memseg.Memory interface, Segment views
// it as a bounds-checked segment, and GuestAllocator carves segments out of
// guest memory through the canonical ABI realloc export:
//
//	ga, err := wasmmem.NewGuestAllocator(ctx, mod)
//	seg, err := alloc.AllocateLayout(ga, l)
//
// Table goes the other way, lending host segments to guests as i32 handles
// and pinning their scopes until the handles are dropped.
package wasmmem
