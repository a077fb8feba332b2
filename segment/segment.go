package segment

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/scope"
)

// Kind identifies what backs a segment.
type Kind uint8

const (
	KindNative Kind = iota // anonymous native memory
	KindMapped             // memory-mapped file
	KindHeap               // Go array viewed as raw bytes
	KindBuffer             // host buffer view
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindMapped:
		return "mapped"
	case KindHeap:
		return "heap"
	case KindBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

var _ memseg.Memory = (*Segment)(nil)
var _ memseg.MemorySizer = (*Segment)(nil)

// Segment is a bounds-checked view of a contiguous byte range. Its lifetime
// is governed by its scope: once the scope closes, every access fails.
//
// Segments are immutable values; Slice, AsReadOnly and Acquire return new
// segments over the same bytes.
type Segment struct {
	base     unsafe.Pointer
	size     uint64
	scope    *scope.Scope
	mapping  *mapping
	kind     Kind
	readOnly bool
}

// Size returns the segment length in bytes.
func (s *Segment) Size() uint64 { return s.size }

// Kind returns what backs the segment.
func (s *Segment) Kind() Kind { return s.kind }

// Scope returns the scope that governs the segment.
func (s *Segment) Scope() *scope.Scope { return s.scope }

// IsAlive reports whether the segment's scope is alive.
func (s *Segment) IsAlive() bool { return s.scope.IsAlive() }

// IsReadOnly reports whether writes through the segment are rejected.
func (s *Segment) IsReadOnly() bool { return s.readOnly }

// IsNative reports whether the segment is backed by memory outside the Go heap.
func (s *Segment) IsNative() bool { return s.kind == KindNative || s.kind == KindMapped }

// IsMapped reports whether the segment is backed by a file mapping.
func (s *Segment) IsMapped() bool { return s.kind == KindMapped }

// Address returns a checked address of the first byte.
func (s *Segment) Address() Address { return Address{seg: s} }

// RawAddress returns the numeric address of the first byte.
func (s *Segment) RawAddress() RawAddress { return RawAddress(uintptr(s.base)) }

func (s *Segment) checkBounds(offset, length uint64) error {
	end, carry := bits.Add64(offset, length, 0)
	if carry != 0 || end > s.size {
		return errors.OutOfBounds(errors.PhaseSegment, offset, length, s.size)
	}
	return nil
}

// at returns the bytes in [offset, offset+length) without any checks.
func (s *Segment) at(offset, length uint64) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(s.base, offset)), length)
}

// Deref runs fn over the bytes in [offset, offset+length). It is the single
// dereference path: it rejects writes to read-only segments, then checks
// bounds, then the scope's lifetime and confinement, and holds the scope's
// access guard while fn runs. fn must not retain the slice.
func (s *Segment) Deref(offset, length uint64, write bool, fn func(b []byte)) error {
	if write && s.readOnly {
		return errors.ReadOnly(errors.PhaseSegment)
	}
	if err := s.checkBounds(offset, length); err != nil {
		return err
	}
	if err := s.scope.Enter(); err != nil {
		return err
	}
	defer s.scope.Exit()
	fn(s.at(offset, length))
	return nil
}

// Slice returns a view of length bytes starting at offset. The view shares
// the scope, read-only flag and kind of s.
func (s *Segment) Slice(offset, length uint64) (*Segment, error) {
	if err := s.checkBounds(offset, length); err != nil {
		return nil, err
	}
	child := *s
	child.base = unsafe.Add(s.base, offset)
	child.size = length
	return &child, nil
}

// SliceFrom returns a view from offset to the end of s.
func (s *Segment) SliceFrom(offset uint64) (*Segment, error) {
	if offset > s.size {
		return nil, errors.OutOfBounds(errors.PhaseSegment, offset, 0, s.size)
	}
	return s.Slice(offset, s.size-offset)
}

// AsReadOnly returns a read-only view of s.
func (s *Segment) AsReadOnly() *Segment {
	child := *s
	child.readOnly = true
	return &child
}

// Acquire returns an alias of s owned by a new scope confined to the calling
// goroutine. Until the alias is closed, the scope of s cannot close. Closing
// the alias never frees memory.
func (s *Segment) Acquire() (*Segment, error) {
	h, err := s.scope.Acquire()
	if err != nil {
		return nil, err
	}
	owner := scope.NewConfined()
	if err := owner.AddCloseAction(func() error {
		h.Release()
		return nil
	}); err != nil {
		h.Release()
		return nil, err
	}
	alias := *s
	alias.scope = owner
	return &alias, nil
}

// Close closes the segment's scope, which invalidates every segment sharing
// it. For an acquired alias only the alias is closed.
func (s *Segment) Close() error {
	return s.scope.Close()
}

func (s *Segment) String() string {
	ro := ""
	if s.readOnly {
		ro = " ro"
	}
	return fmt.Sprintf("Segment{%s 0x%x+%d%s %s}", s.kind, uintptr(s.base), s.size, ro, s.scope)
}
