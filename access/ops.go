package access

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/segment"
)

// Value is the set of Go types a carrier can be read as. The type's size
// must match the carrier width, and floating point types pair only with
// floating point carriers.
type Value interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 |
		~float32 | ~float64 | ~uintptr
}

func checkType[T Value](h *Handle) error {
	t := reflect.TypeFor[T]()
	isFloat := t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	if uint64(t.Size()) != h.carrier.ByteSize() || isFloat != h.carrier.IsFloat() {
		return errors.TypeMismatch(errors.PhaseAccess, t.String(), h.carrier.String())
	}
	return nil
}

func load(b []byte, order layout.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Binary().Uint16(b))
	case 4:
		return uint64(order.Binary().Uint32(b))
	default:
		return order.Binary().Uint64(b)
	}
}

func store(b []byte, order layout.ByteOrder, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.Binary().PutUint16(b, uint16(v))
	case 4:
		order.Binary().PutUint32(b, uint32(v))
	default:
		order.Binary().PutUint64(b, v)
	}
}

// fromBits reinterprets the low bits of raw as T. T's size has already been
// checked against the carrier.
func fromBits[T Value](raw uint64) T {
	var v T
	switch unsafe.Sizeof(v) {
	case 1:
		x := uint8(raw)
		v = *(*T)(unsafe.Pointer(&x))
	case 2:
		x := uint16(raw)
		v = *(*T)(unsafe.Pointer(&x))
	case 4:
		x := uint32(raw)
		v = *(*T)(unsafe.Pointer(&x))
	default:
		v = *(*T)(unsafe.Pointer(&raw))
	}
	return v
}

func toBits[T Value](v T) uint64 {
	switch unsafe.Sizeof(v) {
	case 1:
		return uint64(*(*uint8)(unsafe.Pointer(&v)))
	case 2:
		return uint64(*(*uint16)(unsafe.Pointer(&v)))
	case 4:
		return uint64(*(*uint32)(unsafe.Pointer(&v)))
	default:
		return *(*uint64)(unsafe.Pointer(&v))
	}
}

// Get reads the value at the handle's address in seg.
func Get[T Value](h *Handle, seg *segment.Segment, coords ...uint64) (T, error) {
	return get[T](h, seg, 0, coords)
}

// Set writes v at the handle's address in seg.
func Set[T Value](h *Handle, seg *segment.Segment, v T, coords ...uint64) error {
	return set(h, seg, 0, v, coords)
}

func get[T Value](h *Handle, seg *segment.Segment, extra uint64, coords []uint64) (T, error) {
	var out T
	if err := checkType[T](h); err != nil {
		return out, err
	}
	err := h.deref(seg, extra, coords, false, tierPartial, func(b []byte) {
		out = fromBits[T](load(b, h.order))
	})
	return out, err
}

func set[T Value](h *Handle, seg *segment.Segment, extra uint64, v T, coords []uint64) error {
	if err := checkType[T](h); err != nil {
		return err
	}
	return h.deref(seg, extra, coords, true, tierPartial, func(b []byte) {
		store(b, h.order, toBits(v))
	})
}

// GetAtIndex reads the index-th carrier-sized element past the handle's
// address.
func GetAtIndex[T Value](h *Handle, seg *segment.Segment, index uint64, coords ...uint64) (T, error) {
	extra, err := indexOffset(h, seg, index)
	if err != nil {
		var zero T
		return zero, err
	}
	return get[T](h, seg, extra, coords)
}

// SetAtIndex writes the index-th carrier-sized element past the handle's
// address.
func SetAtIndex[T Value](h *Handle, seg *segment.Segment, index uint64, v T, coords ...uint64) error {
	extra, err := indexOffset(h, seg, index)
	if err != nil {
		return err
	}
	return set(h, seg, extra, v, coords)
}

func indexOffset(h *Handle, seg *segment.Segment, index uint64) (uint64, error) {
	size := h.carrier.ByteSize()
	off := index * size
	if index != 0 && off/index != size || off > seg.Size() {
		return 0, errors.New(errors.PhaseAccess, errors.KindOutOfBounds).
			Value(index).
			Detail("index %d of %d-byte elements exceeds segment size %d", index, size, seg.Size()).
			Build()
	}
	return off, nil
}

// atomicOp runs fn with a pointer to the carrier once the address is fully
// aligned. Only native-order 4 and 8 byte carriers support atomic access.
func atomicOp[T Value](h *Handle, seg *segment.Segment, write bool, coords []uint64, fn32 func(p *uint32), fn64 func(p *uint64)) error {
	if err := checkType[T](h); err != nil {
		return err
	}
	if !h.order.IsNative() {
		return errors.Unsupported(errors.PhaseAccess, "atomic access requires native byte order")
	}
	size := h.carrier.ByteSize()
	if size != 4 && size != 8 {
		return errors.Unsupported(errors.PhaseAccess, "atomic access requires a 4 or 8 byte carrier")
	}
	return h.deref(seg, 0, coords, write, tierAligned, func(b []byte) {
		p := unsafe.Pointer(unsafe.SliceData(b))
		if size == 4 {
			fn32((*uint32)(p))
		} else {
			fn64((*uint64)(p))
		}
	})
}

// GetVolatile reads the value with sequentially consistent ordering.
func GetVolatile[T Value](h *Handle, seg *segment.Segment, coords ...uint64) (T, error) {
	var raw uint64
	err := atomicOp[T](h, seg, false, coords,
		func(p *uint32) { raw = uint64(atomic.LoadUint32(p)) },
		func(p *uint64) { raw = atomic.LoadUint64(p) })
	return fromBits[T](raw), err
}

// SetVolatile writes the value with sequentially consistent ordering.
func SetVolatile[T Value](h *Handle, seg *segment.Segment, v T, coords ...uint64) error {
	raw := toBits(v)
	return atomicOp[T](h, seg, true, coords,
		func(p *uint32) { atomic.StoreUint32(p, uint32(raw)) },
		func(p *uint64) { atomic.StoreUint64(p, raw) })
}

// CompareAndSet atomically replaces expected with desired and reports
// whether it did. Floating point values compare by bit pattern.
func CompareAndSet[T Value](h *Handle, seg *segment.Segment, expected, desired T, coords ...uint64) (bool, error) {
	old, repl := toBits(expected), toBits(desired)
	var swapped bool
	err := atomicOp[T](h, seg, true, coords,
		func(p *uint32) { swapped = atomic.CompareAndSwapUint32(p, uint32(old), uint32(repl)) },
		func(p *uint64) { swapped = atomic.CompareAndSwapUint64(p, old, repl) })
	return swapped, err
}

// GetAndSet atomically stores v and returns the previous value.
func GetAndSet[T Value](h *Handle, seg *segment.Segment, v T, coords ...uint64) (T, error) {
	raw := toBits(v)
	var prev uint64
	err := atomicOp[T](h, seg, true, coords,
		func(p *uint32) { prev = uint64(atomic.SwapUint32(p, uint32(raw))) },
		func(p *uint64) { prev = atomic.SwapUint64(p, raw) })
	return fromBits[T](prev), err
}

// GetAndAdd atomically adds delta and returns the previous value. Floating
// point carriers are not supported.
func GetAndAdd[T Value](h *Handle, seg *segment.Segment, delta T, coords ...uint64) (T, error) {
	if h.carrier.IsFloat() {
		var zero T
		return zero, errors.Unsupported(errors.PhaseAccess, "atomic add on a floating point carrier")
	}
	d := toBits(delta)
	var prev uint64
	err := atomicOp[T](h, seg, true, coords,
		func(p *uint32) { prev = uint64(atomic.AddUint32(p, uint32(d)) - uint32(d)) },
		func(p *uint64) { prev = atomic.AddUint64(p, d) - d })
	return fromBits[T](prev), err
}
