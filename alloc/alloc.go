package alloc

import (
	"math/bits"
	"sync"

	"github.com/wippyai/memseg/access"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

// Allocator hands out segments of a requested size and alignment.
type Allocator interface {
	Allocate(size, align uint64) (*segment.Segment, error)
}

// AllocateLayout allocates a segment sized and aligned for l.
func AllocateLayout(a Allocator, l layout.Layout) (*segment.Segment, error) {
	size, err := l.ByteSize()
	if err != nil {
		return nil, err
	}
	return a.Allocate(size, l.ByteAlignment())
}

// AllocateArray allocates room for count elements of elem.
func AllocateArray(a Allocator, elem layout.Layout, count uint64) (*segment.Segment, error) {
	size, err := elem.ByteSize()
	if err != nil {
		return nil, err
	}
	hi, total := bits.Mul64(size, count)
	if hi != 0 {
		return nil, errors.Overflow(errors.PhaseAlloc, "array size", size, count)
	}
	return a.Allocate(total, elem.ByteAlignment())
}

// AllocateValue allocates storage for l and initializes it with v.
func AllocateValue[T access.Value](a Allocator, l *layout.Value, v T) (*segment.Segment, error) {
	h, err := access.ForLayout(l)
	if err != nil {
		return nil, err
	}
	seg, err := AllocateLayout(a, l)
	if err != nil {
		return nil, err
	}
	if err := access.Set(h, seg, v); err != nil {
		return nil, err
	}
	return seg, nil
}

// AllocateBytes allocates a byte-aligned copy of data.
func AllocateBytes(a Allocator, data []byte) (*segment.Segment, error) {
	seg, err := a.Allocate(uint64(len(data)), 1)
	if err != nil {
		return nil, err
	}
	if err := seg.Write(0, data); err != nil {
		return nil, err
	}
	return seg, nil
}

type nativeAllocator struct {
	scope *scope.Scope
}

// Native returns an allocator that maps a fresh native block per request,
// each released when sc closes.
func Native(sc *scope.Scope) Allocator {
	return &nativeAllocator{scope: sc}
}

func (n *nativeAllocator) Allocate(size, align uint64) (*segment.Segment, error) {
	return segment.AllocateNative(size, align, n.scope)
}

// PrefixAllocator returns the leading bytes of one segment on every request.
// Earlier results alias later ones; callers serialize their use.
type PrefixAllocator struct {
	seg *segment.Segment
}

// Prefix returns an allocator that recycles seg.
func Prefix(seg *segment.Segment) *PrefixAllocator {
	return &PrefixAllocator{seg: seg}
}

// Allocate returns the first size bytes of the backing segment. align is
// ignored.
func (p *PrefixAllocator) Allocate(size, _ uint64) (*segment.Segment, error) {
	return p.seg.Slice(0, size)
}

// Synchronized wraps a with a mutex so it can be shared between goroutines.
func Synchronized(a Allocator) Allocator {
	return &synchronizedAllocator{alloc: a}
}

type synchronizedAllocator struct {
	mu    sync.Mutex
	alloc Allocator
}

func (s *synchronizedAllocator) Allocate(size, align uint64) (*segment.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.Allocate(size, align)
}
