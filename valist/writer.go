package valist

import (
	"github.com/wippyai/memseg/access"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/segment"
)

// Writer lays out argument values in a segment with the same placement
// rules a Cursor reads them with.
type Writer struct {
	seg    *segment.Segment
	offset uint64
	slot   uint64
}

// NewWriter returns a writer over seg. slot is zero for natural packing or
// a power of two slot size.
func NewWriter(seg *segment.Segment, slot uint64) (*Writer, error) {
	if slot != 0 && slot&(slot-1) != 0 {
		return nil, errors.Construction(errors.PhaseAccess, "slot size %d is not a power of two", slot)
	}
	return &Writer{seg: seg, slot: slot}, nil
}

// Offset returns the number of bytes laid out so far.
func (w *Writer) Offset() uint64 { return w.offset }

// Cursor returns a cursor reading back what w wrote.
func (w *Writer) Cursor() *Cursor {
	return &Cursor{seg: w.seg, slot: w.slot}
}

// Put appends v with layout l.
func Put[T access.Value](w *Writer, l *layout.Value, v T) error {
	start, next, err := place(w.offset, w.slot, l)
	if err != nil {
		return err
	}
	sub, err := w.seg.SliceFrom(start)
	if err != nil {
		return err
	}
	if err := access.Set(access.Unaligned(l.Carrier(), l.Order()), sub, v); err != nil {
		return err
	}
	w.offset = next
	return nil
}

// PutStruct appends the contents of src laid out as l.
func (w *Writer) PutStruct(l layout.Layout, src *segment.Segment) error {
	start, next, err := place(w.offset, w.slot, l)
	if err != nil {
		return err
	}
	size, _ := l.ByteSize()
	if err := segment.Copy(src, 0, w.seg, start, size); err != nil {
		return err
	}
	w.offset = next
	return nil
}
