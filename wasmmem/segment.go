package wasmmem

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/segment"
)

// Segment returns a segment viewing the whole of mem as it is now. Growing
// the memory may move it, after which the segment views stale bytes and
// should be closed and fetched again.
func Segment(mem api.Memory) (*segment.Segment, error) {
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseSegment, "memory is nil")
	}
	view, ok := mem.Read(0, mem.Size())
	if !ok {
		return nil, errors.Unsupported(errors.PhaseSegment, "memory cannot be viewed")
	}
	return segment.OfView(view), nil
}

// GuestAllocator allocates guest memory through an exported canonical ABI
// realloc function, cabi_realloc(old_ptr, old_size, align, new_size).
type GuestAllocator struct {
	Ctx context.Context
	Fn  api.Function
	Mem api.Memory
}

// NewGuestAllocator returns an allocator calling the module's exported
// cabi_realloc and viewing its exported memory.
func NewGuestAllocator(ctx context.Context, mod api.Module) (*GuestAllocator, error) {
	fn := mod.ExportedFunction("cabi_realloc")
	if fn == nil {
		return nil, errors.Unsupported(errors.PhaseAlloc, "module does not export cabi_realloc")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		return nil, errors.Unsupported(errors.PhaseAlloc, "module does not export memory")
	}
	return &GuestAllocator{Ctx: ctx, Fn: fn, Mem: mem}, nil
}

// Allocate calls the guest allocator and returns the allocated range as a
// segment over guest memory.
func (a *GuestAllocator) Allocate(size, align uint64) (*segment.Segment, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, errors.Construction(errors.PhaseAlloc, "alignment %d is not a power of two", align)
	}
	if size > 1<<32-1 || align > 1<<32-1 {
		return nil, errors.Exhausted(errors.PhaseAlloc, size, align, "exceeds guest address space")
	}
	results, err := a.Fn.Call(a.Ctx, 0, 0, align, size)
	if err != nil {
		return nil, errors.New(errors.PhaseAlloc, errors.KindExhausted).
			Cause(err).
			Detail("guest allocation of %d bytes failed", size).
			Build()
	}
	if len(results) == 0 {
		return nil, errors.Exhausted(errors.PhaseAlloc, size, align, "allocation returned no result")
	}
	ptr := uint64(uint32(results[0]))
	if ptr%align != 0 {
		return nil, errors.Misaligned(errors.PhaseAlloc, ptr, align, "guest allocation")
	}

	memseg.Logger().Debug("guest allocation",
		zap.Uint64("ptr", ptr),
		zap.Uint64("size", size),
		zap.Uint64("align", align))

	// realloc may have grown the memory, so view it afresh
	whole, err := Segment(a.Mem)
	if err != nil {
		return nil, err
	}
	return whole.Slice(ptr, size)
}

// Free releases a segment returned by Allocate. Segments that do not lie
// entirely inside guest memory are rejected.
func (a *GuestAllocator) Free(seg *segment.Segment, align uint64) error {
	whole, err := Segment(a.Mem)
	if err != nil {
		return err
	}
	off, err := whole.SegmentOffset(seg)
	if err != nil || off < 0 || uint64(off) > whole.Size() || seg.Size() > whole.Size()-uint64(off) {
		return errors.New(errors.PhaseAlloc, errors.KindOutOfBounds).
			Value(off).
			Detail("segment of %d bytes is not inside guest memory of %d bytes", seg.Size(), whole.Size()).
			Build()
	}
	_, err = a.Fn.Call(a.Ctx, uint64(off), seg.Size(), align, 0)
	return err
}
