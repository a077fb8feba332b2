package segment

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
)

// CopyElements copies count elements from src at srcOffset to dst at
// dstOffset. Both element layouts must have the same size, and both starting
// addresses must satisfy their layout's alignment. When the byte orders
// differ, every element is byte swapped on the way.
func CopyElements(src *Segment, srcElem *layout.Value, srcOffset uint64,
	dst *Segment, dstElem *layout.Value, dstOffset uint64, count uint64) error {
	if srcElem == nil || dstElem == nil {
		return errors.InvalidInput(errors.PhaseSegment, "element layout is nil")
	}
	size := srcElem.Carrier().ByteSize()
	if d := dstElem.Carrier().ByteSize(); d != size {
		return errors.New(errors.PhaseSegment, errors.KindInvalidInput).
			Detail("element sizes differ: %d and %d bytes", size, d).
			Build()
	}
	hi, n := bits.Mul64(size, count)
	if hi != 0 {
		return errors.Overflow(errors.PhaseSegment, "element copy length", size, count)
	}
	if err := src.checkElementAlign(srcOffset, srcElem, "copy source"); err != nil {
		return err
	}
	if err := dst.checkElementAlign(dstOffset, dstElem, "copy destination"); err != nil {
		return err
	}

	swap := size > 1 && srcElem.Order() != dstElem.Order()
	var inner error
	err := src.Deref(srcOffset, n, false, func(from []byte) {
		inner = dst.Deref(dstOffset, n, true, func(to []byte) {
			if !swap {
				copy(to, from)
				return
			}
			if overlaps(from, to) {
				from = append([]byte(nil), from...)
			}
			for off := uint64(0); off < n; off += size {
				f, t := from[off:off+size], to[off:off+size]
				for i := range t {
					t[i] = f[len(f)-1-i]
				}
			}
		})
	})
	if err != nil {
		return err
	}
	return inner
}

func (s *Segment) checkElementAlign(offset uint64, elem *layout.Value, op string) error {
	addr := uint64(uintptr(s.base)) + offset
	if align := elem.ByteAlignment(); addr%align != 0 {
		return errors.Misaligned(errors.PhaseSegment, addr, align, op)
	}
	return nil
}

func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	pa, pb := uintptr(unsafe.Pointer(unsafe.SliceData(a))), uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return pa < pb+uintptr(len(b)) && pb < pa+uintptr(len(a))
}

// toSlice decodes the whole segment as consecutive size-byte elements.
func toSlice[T any](s *Segment, size uint64, decode func(b []byte) T) ([]T, error) {
	if s.size%size != 0 {
		return nil, errors.New(errors.PhaseSegment, errors.KindInvalidInput).
			Detail("segment size %d is not a multiple of element size %d", s.size, size).
			Build()
	}
	out := make([]T, s.size/size)
	err := s.Deref(0, s.size, false, func(b []byte) {
		for i := range out {
			out[i] = decode(b[uint64(i)*size:])
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ToInt16s copies the segment into a new slice of int16 read in order.
func (s *Segment) ToInt16s(order layout.ByteOrder) ([]int16, error) {
	bo := order.Binary()
	return toSlice(s, 2, func(b []byte) int16 { return int16(bo.Uint16(b)) })
}

// ToUint16s copies the segment into a new slice of 16-bit chars read in
// order.
func (s *Segment) ToUint16s(order layout.ByteOrder) ([]uint16, error) {
	return toSlice(s, 2, order.Binary().Uint16)
}

// ToInt32s copies the segment into a new slice of int32 read in order.
func (s *Segment) ToInt32s(order layout.ByteOrder) ([]int32, error) {
	bo := order.Binary()
	return toSlice(s, 4, func(b []byte) int32 { return int32(bo.Uint32(b)) })
}

// ToInt64s copies the segment into a new slice of int64 read in order.
func (s *Segment) ToInt64s(order layout.ByteOrder) ([]int64, error) {
	bo := order.Binary()
	return toSlice(s, 8, func(b []byte) int64 { return int64(bo.Uint64(b)) })
}

// ToFloat32s copies the segment into a new slice of float32 read in order.
func (s *Segment) ToFloat32s(order layout.ByteOrder) ([]float32, error) {
	bo := order.Binary()
	return toSlice(s, 4, func(b []byte) float32 { return math.Float32frombits(bo.Uint32(b)) })
}

// ToFloat64s copies the segment into a new slice of float64 read in order.
func (s *Segment) ToFloat64s(order layout.ByteOrder) ([]float64, error) {
	bo := order.Binary()
	return toSlice(s, 8, func(b []byte) float64 { return math.Float64frombits(bo.Uint64(b)) })
}
