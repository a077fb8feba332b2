package valist

import (
	"math"
	"testing"

	"github.com/wippyai/memseg/alloc"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

func TestPackedRoundTrip(t *testing.T) {
	seg := segment.OfBytes(make([]byte, 64))
	w, err := NewWriter(seg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := Put(w, layout.Int8, int8(-3)); err != nil {
		t.Fatal(err)
	}
	if err := Put(w, layout.Int32, int32(70000)); err != nil {
		t.Fatal(err)
	}
	if err := Put(w, layout.Float64, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := Put(w, layout.Int16, int16(-2)); err != nil {
		t.Fatal(err)
	}
	// 1 byte, pad to 4, 4 bytes, pad to 8, 8 bytes, 2 bytes
	if w.Offset() != 18 {
		t.Errorf("Offset() = %d, want 18", w.Offset())
	}

	c := w.Cursor()
	if v, err := NextAs[int8](c, layout.Int8); err != nil || v != -3 {
		t.Errorf("int8 = %d, %v", v, err)
	}
	if c.Offset() != 1 {
		t.Errorf("offset after int8 = %d", c.Offset())
	}
	if v, err := c.Next(layout.Int32); err != nil || v != 70000 {
		t.Errorf("int32 bits = %d, %v", v, err)
	}
	saved := c.Copy()
	if v, err := c.Next(layout.Float64); err != nil || math.Float64frombits(v) != 1.5 {
		t.Errorf("float64 bits = %x, %v", v, err)
	}
	if v, err := c.Next(layout.Int16); err != nil || v != 0xfffe {
		t.Errorf("int16 bits = %x, %v", v, err)
	}
	if saved.Offset() != 8 {
		t.Errorf("copied cursor moved to %d", saved.Offset())
	}
	if v, err := NextAs[float64](saved, layout.Float64); err != nil || v != 1.5 {
		t.Errorf("copy reads %v, %v", v, err)
	}
}

func TestSlotted(t *testing.T) {
	seg := segment.OfBytes(make([]byte, 32))
	w, err := NewWriter(seg, 8)
	if err != nil {
		t.Fatal(err)
	}
	_ = Put(w, layout.Int8, int8(1))
	_ = Put(w, layout.Float32, float32(2.5))
	_ = Put(w, layout.Int32, int32(3))
	if w.Offset() != 24 {
		t.Errorf("Offset() = %d, want 24", w.Offset())
	}

	c, err := NewSlotted(seg, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Skip(layout.Int8); err != nil {
		t.Fatal(err)
	}
	if v, err := c.Next(layout.Float32); err != nil || math.Float32frombits(uint32(v)) != 2.5 {
		t.Errorf("float32 = %x, %v", v, err)
	}
	if v, _ := NextAs[int32](c, layout.Int32); v != 3 {
		t.Errorf("int32 = %d", v)
	}
	if c.Remaining() != 8 {
		t.Errorf("Remaining() = %d", c.Remaining())
	}

	if _, err := NewSlotted(seg, 3); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("slot 3: got %v", err)
	}
	if _, err := NewWriter(seg, 6); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("writer slot 6: got %v", err)
	}
}

func TestStructs(t *testing.T) {
	sc := scope.NewConfined()
	defer sc.Close()
	a, err := alloc.NewArena(sc, alloc.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	pair := layout.MustStruct(layout.Int32.WithName("a"), layout.Int32.WithName("b"))
	src := segment.OfInt32s([]int32{11, 22})
	buf, err := a.Allocate(32, 8)
	if err != nil {
		t.Fatal(err)
	}
	w, _ := NewWriter(buf, 0)
	_ = Put(w, layout.Int8, int8(9))
	if err := w.PutStruct(pair, src); err != nil {
		t.Fatal(err)
	}

	c := w.Cursor()
	_ = c.Skip(layout.Int8)
	got, err := c.NextStruct(pair, a)
	if err != nil {
		t.Fatal(err)
	}
	if mm, _ := got.Mismatch(src); mm != -1 {
		t.Errorf("struct copy differs at %d", mm)
	}
	if got.Scope() != sc {
		t.Error("struct copy not allocated from the arena")
	}
}

func TestBounds(t *testing.T) {
	seg := segment.OfBytes(make([]byte, 6))
	c := New(seg)
	if _, err := c.Next(layout.Int32); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Next(layout.Int32); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("read past end: got %v", err)
	}
	if c.Offset() != 4 {
		t.Errorf("failed read moved the cursor to %d", c.Offset())
	}
	if err := c.Skip(layout.Int16, layout.Int8); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("skip past end: got %v", err)
	}
	if err := c.Skip(layout.Int16); err != nil || c.Remaining() != 0 {
		t.Errorf("skip to end: %v, remaining %d", err, c.Remaining())
	}
}
