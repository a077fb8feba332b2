package segment

import (
	"iter"

	"github.com/wippyai/memseg/errors"
)

// ToBytes copies the segment's contents into a new slice.
func (s *Segment) ToBytes() ([]byte, error) {
	out := make([]byte, s.size)
	if err := s.Deref(0, s.size, false, func(b []byte) { copy(out, b) }); err != nil {
		return nil, err
	}
	return out, nil
}

// View returns the segment's bytes without copying. The slice is only valid
// while the scope is alive and bypasses all later checks; prefer Deref.
// Read-only segments cannot be viewed.
func (s *Segment) View() ([]byte, error) {
	if s.readOnly {
		return nil, errors.ReadOnly(errors.PhaseSegment)
	}
	if err := s.scope.CheckValidState(); err != nil {
		return nil, err
	}
	return s.at(0, s.size), nil
}

// Fill sets every byte of the segment to value.
func (s *Segment) Fill(value byte) error {
	return s.Deref(0, s.size, true, func(b []byte) {
		for i := range b {
			b[i] = value
		}
	})
}

// CopyFrom copies all of src to the start of s.
func (s *Segment) CopyFrom(src *Segment) error {
	return Copy(src, 0, s, 0, src.size)
}

// Copy copies n bytes from src at srcOffset to dst at dstOffset. Overlapping
// ranges are handled as if the source were first copied to a temporary.
func Copy(src *Segment, srcOffset uint64, dst *Segment, dstOffset uint64, n uint64) error {
	var inner error
	err := src.Deref(srcOffset, n, false, func(from []byte) {
		inner = dst.Deref(dstOffset, n, true, func(to []byte) {
			copy(to, from)
		})
	})
	if err != nil {
		return err
	}
	return inner
}

// Mismatch returns the offset of the first byte that differs between s and
// other, or -1 when they have the same size and contents. When one segment
// is a prefix of the other, the shorter size is returned.
func (s *Segment) Mismatch(other *Segment) (int64, error) {
	n := min(s.size, other.size)
	result := int64(-1)
	var inner error
	err := s.Deref(0, s.size, false, func(a []byte) {
		inner = other.Deref(0, other.size, false, func(b []byte) {
			for i := uint64(0); i < n; i++ {
				if a[i] != b[i] {
					result = int64(i)
					return
				}
			}
			if s.size != other.size {
				result = int64(n)
			}
		})
	})
	if err != nil {
		return 0, err
	}
	return result, inner
}

// AsOverlappingSlice returns the part of s that overlaps other, if any.
func (s *Segment) AsOverlappingSlice(other *Segment) (*Segment, bool) {
	if s.IsNative() != other.IsNative() {
		return nil, false
	}
	a0, b0 := uintptr(s.base), uintptr(other.base)
	lo := max(a0, b0)
	hi := min(a0+uintptr(s.size), b0+uintptr(other.size))
	if lo >= hi {
		return nil, false
	}
	overlap, err := s.Slice(uint64(lo-a0), uint64(hi-lo))
	if err != nil {
		return nil, false
	}
	return overlap, true
}

// SegmentOffset returns the distance in bytes from the start of s to the
// start of other. Both must be native, or both views of Go memory.
func (s *Segment) SegmentOffset(other *Segment) (int64, error) {
	if s.IsNative() != other.IsNative() {
		return 0, errors.Unsupported(errors.PhaseSegment, "offset between native and heap segments")
	}
	return int64(uintptr(other.base) - uintptr(s.base)), nil
}

// Elements splits s into consecutive slices of elemSize bytes.
func (s *Segment) Elements(elemSize uint64) (iter.Seq[*Segment], error) {
	if elemSize == 0 {
		return nil, errors.InvalidInput(errors.PhaseSegment, "element size must be positive")
	}
	if s.size%elemSize != 0 {
		return nil, errors.New(errors.PhaseSegment, errors.KindInvalidInput).
			Detail("segment size %d is not a multiple of element size %d", s.size, elemSize).
			Build()
	}
	return func(yield func(*Segment) bool) {
		for off := uint64(0); off < s.size; off += elemSize {
			elem, _ := s.Slice(off, elemSize)
			if !yield(elem) {
				return
			}
		}
	}, nil
}
