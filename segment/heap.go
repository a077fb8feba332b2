package segment

import (
	"bytes"
	"unsafe"

	"github.com/wippyai/memseg/scope"
)

func ofSlice[T any](kind Kind, s []T) *Segment {
	var zero T
	return &Segment{
		base:  unsafe.Pointer(unsafe.SliceData(s)),
		size:  uint64(len(s)) * uint64(unsafe.Sizeof(zero)),
		scope: scope.NewShared(),
		kind:  kind,
	}
}

// OfBytes returns a segment viewing b. The segment gets its own scope with
// no close actions: closing it only makes it inaccessible, and b stays
// owned by the garbage collector.
func OfBytes(b []byte) *Segment { return ofSlice(KindHeap, b) }

// OfInt16s returns a segment viewing the bytes of s.
func OfInt16s(s []int16) *Segment { return ofSlice(KindHeap, s) }

// OfUint16s returns a segment viewing the bytes of s.
func OfUint16s(s []uint16) *Segment { return ofSlice(KindHeap, s) }

// OfInt32s returns a segment viewing the bytes of s.
func OfInt32s(s []int32) *Segment { return ofSlice(KindHeap, s) }

// OfInt64s returns a segment viewing the bytes of s.
func OfInt64s(s []int64) *Segment { return ofSlice(KindHeap, s) }

// OfFloat32s returns a segment viewing the bytes of s.
func OfFloat32s(s []float32) *Segment { return ofSlice(KindHeap, s) }

// OfFloat64s returns a segment viewing the bytes of s.
func OfFloat64s(s []float64) *Segment { return ofSlice(KindHeap, s) }

// OfBuffer returns a segment viewing the unread portion of buf. Writing to
// buf may reallocate its storage, after which the segment views stale bytes.
func OfBuffer(buf *bytes.Buffer) *Segment { return ofSlice(KindBuffer, buf.Bytes()) }

// OfView returns a Buffer segment over memory owned by another runtime,
// such as a WebAssembly linear memory. The owner may move or release the
// bytes; the caller closes the segment when that happens.
func OfView(b []byte) *Segment { return ofSlice(KindBuffer, b) }
