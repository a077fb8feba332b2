package valist

import (
	"math"

	"github.com/wippyai/memseg/access"
	"github.com/wippyai/memseg/alloc"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/segment"
)

// Cursor reads consecutive argument values from a segment. Each value is
// placed at the next offset aligned to its layout; with a non-zero slot
// size, values additionally start on slot boundaries and occupy whole slots.
type Cursor struct {
	seg    *segment.Segment
	offset uint64
	slot   uint64
}

// New returns a cursor packing values by natural alignment.
func New(seg *segment.Segment) *Cursor {
	return &Cursor{seg: seg}
}

// NewSlotted returns a cursor where every value occupies whole slots of
// slot bytes, as in register save areas and stack argument lists.
func NewSlotted(seg *segment.Segment, slot uint64) (*Cursor, error) {
	if slot == 0 || slot&(slot-1) != 0 {
		return nil, errors.Construction(errors.PhaseAccess, "slot size %d is not a power of two", slot)
	}
	return &Cursor{seg: seg, slot: slot}, nil
}

// Offset returns the byte offset of the next value.
func (c *Cursor) Offset() uint64 { return c.offset }

// Remaining returns the bytes left after the cursor.
func (c *Cursor) Remaining() uint64 {
	if c.offset >= c.seg.Size() {
		return 0
	}
	return c.seg.Size() - c.offset
}

// Copy returns an independent cursor at the same position.
func (c *Cursor) Copy() *Cursor {
	out := *c
	return &out
}

// place returns where a value of l starts and where the following one may
// start.
func place(offset, slot uint64, l layout.Layout) (start, next uint64, err error) {
	size, err := l.ByteSize()
	if err != nil {
		return 0, 0, err
	}
	align := l.ByteAlignment()
	if slot > 0 {
		align = max(align, slot)
		size = alignUp(size, slot)
	}
	start = alignUp(offset, align)
	next = start + size
	if start < offset || next < start {
		return 0, 0, errors.Overflow(errors.PhaseAccess, "argument offset", offset, size)
	}
	return start, next, nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// Next reads the next value of layout l and returns its bits, zero-extended.
func (c *Cursor) Next(l *layout.Value) (uint64, error) {
	start, next, err := place(c.offset, c.slot, l)
	if err != nil {
		return 0, err
	}
	sub, err := c.seg.SliceFrom(start)
	if err != nil {
		return 0, err
	}
	h := access.Unaligned(l.Carrier(), l.Order())
	var raw uint64
	switch l.Carrier() {
	case layout.CarrierFloat:
		var f float32
		f, err = access.Get[float32](h, sub)
		raw = uint64(math.Float32bits(f))
	case layout.CarrierDouble:
		var f float64
		f, err = access.Get[float64](h, sub)
		raw = math.Float64bits(f)
	default:
		raw, err = getBits(h, sub)
	}
	if err != nil {
		return 0, err
	}
	c.offset = next
	return raw, nil
}

func getBits(h *access.Handle, seg *segment.Segment) (uint64, error) {
	switch h.Carrier().ByteSize() {
	case 1:
		v, err := access.Get[uint8](h, seg)
		return uint64(v), err
	case 2:
		v, err := access.Get[uint16](h, seg)
		return uint64(v), err
	case 4:
		v, err := access.Get[uint32](h, seg)
		return uint64(v), err
	default:
		return access.Get[uint64](h, seg)
	}
}

// NextAs reads the next value of layout l as T.
func NextAs[T access.Value](c *Cursor, l *layout.Value) (T, error) {
	var zero T
	start, next, err := place(c.offset, c.slot, l)
	if err != nil {
		return zero, err
	}
	sub, err := c.seg.SliceFrom(start)
	if err != nil {
		return zero, err
	}
	v, err := access.Get[T](access.Unaligned(l.Carrier(), l.Order()), sub)
	if err != nil {
		return zero, err
	}
	c.offset = next
	return v, nil
}

// NextStruct copies the next value of layout l into a segment obtained from
// a and returns it.
func (c *Cursor) NextStruct(l layout.Layout, a alloc.Allocator) (*segment.Segment, error) {
	start, next, err := place(c.offset, c.slot, l)
	if err != nil {
		return nil, err
	}
	size, _ := l.ByteSize()
	if err := c.seg.Deref(start, size, false, func([]byte) {}); err != nil {
		return nil, err
	}
	dst, err := alloc.AllocateLayout(a, l)
	if err != nil {
		return nil, err
	}
	if err := segment.Copy(c.seg, start, dst, 0, size); err != nil {
		return nil, err
	}
	c.offset = next
	return dst, nil
}

// Skip advances past values of the given layouts without reading them.
func (c *Cursor) Skip(layouts ...layout.Layout) error {
	off := c.offset
	for _, l := range layouts {
		_, next, err := place(off, c.slot, l)
		if err != nil {
			return err
		}
		off = next
	}
	if off > c.seg.Size() {
		return errors.OutOfBounds(errors.PhaseAccess, c.offset, off-c.offset, c.seg.Size())
	}
	c.offset = off
	return nil
}
