package segment

import (
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/scope"
)

// AllocateNative allocates size zeroed bytes of native memory aligned to
// align and registers its release with sc. align must be a power of two.
func AllocateNative(size, align uint64, sc *scope.Scope) (*Segment, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, errors.Construction(errors.PhaseSegment, "alignment %d is not a power of two", align)
	}
	if err := sc.CheckValidState(); err != nil {
		return nil, err
	}

	page := uint64(unix.Getpagesize())
	extra := uint64(0)
	if align > page {
		extra = align - page
	}
	n := size + extra
	if n < size {
		return nil, errors.Overflow(errors.PhaseSegment, "native allocation", size, extra)
	}
	if n == 0 {
		n = page
	}
	if n > uint64(maxMapLen) {
		return nil, errors.Exhausted(errors.PhaseSegment, size, align, "exceeds addressable memory")
	}

	mem, err := unix.Mmap(-1, 0, int(n),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, errors.New(errors.PhaseSegment, errors.KindExhausted).
			Cause(err).
			Detail("cannot allocate %d bytes (align %d)", size, align).
			Build()
	}

	start := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	skip := uint64(alignUp(start, uintptr(align)) - start)

	if err := sc.AddCloseAction(func() error {
		memseg.Logger().Debug("freeing native memory",
			zap.Uintptr("address", start),
			zap.Int("length", len(mem)))
		return unix.Munmap(mem)
	}); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}

	memseg.Logger().Debug("allocated native memory",
		zap.Uint64("size", size),
		zap.Uint64("align", align),
		zap.Uint64("scope", sc.ID()))

	return &Segment{
		base:  unsafe.Add(unsafe.Pointer(unsafe.SliceData(mem)), skip),
		size:  size,
		scope: sc,
		kind:  KindNative,
	}, nil
}

// AllocateNativeLayout allocates native memory sized and aligned for l.
func AllocateNativeLayout(l layout.Layout, sc *scope.Scope) (*Segment, error) {
	size, err := l.ByteSize()
	if err != nil {
		return nil, err
	}
	return AllocateNative(size, l.ByteAlignment(), sc)
}

// OfAddress wraps size bytes at a raw address in a segment governed by sc.
// No close action is registered; the memory is owned elsewhere. This is
// inherently unsafe: nothing verifies that the range is mapped.
func OfAddress(addr RawAddress, size uint64, sc *scope.Scope) (*Segment, error) {
	if addr.IsNull() && size > 0 {
		return nil, errors.InvalidInput(errors.PhaseSegment, "cannot wrap NULL with a non-zero size")
	}
	if _, carry := addUintptr(uintptr(addr), size); carry {
		return nil, errors.Overflow(errors.PhaseSegment, "address range", uint64(addr), size)
	}
	if err := sc.CheckValidState(); err != nil {
		return nil, err
	}
	return &Segment{
		base:  unsafe.Pointer(uintptr(addr)), //nolint:govet // foreign address
		size:  size,
		scope: sc,
		kind:  KindNative,
	}, nil
}

const maxMapLen = int(^uint(0) >> 1)

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

func addUintptr(a uintptr, b uint64) (uintptr, bool) {
	sum := a + uintptr(b)
	return sum, sum < a || uint64(uintptr(b)) != b
}
