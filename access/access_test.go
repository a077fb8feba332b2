package access

import (
	"math"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func native(t *testing.T, size uint64) *segment.Segment {
	t.Helper()
	sc := scope.NewShared()
	t.Cleanup(func() { _ = sc.Close() })
	seg, err := segment.AllocateNative(size, 64, sc)
	if err != nil {
		t.Fatal(err)
	}
	return seg
}

func TestLayoutPath(t *testing.T) {
	point := layout.MustStruct(layout.Int32.WithName("x"), layout.Int32.WithName("y"))
	points := layout.MustSequence(4, point)
	seg := native(t, 32)

	y, err := ForLayout(points, layout.SequenceElements(), layout.GroupElement("y"))
	if err != nil {
		t.Fatal(err)
	}
	if y.Coordinates() != 1 || y.Offset() != 4 || y.Strides()[0] != 8 {
		t.Fatalf("handle %s", y)
	}
	for i := range uint64(4) {
		if err := Set(y, seg, int32(10*i), i); err != nil {
			t.Fatal(err)
		}
	}
	for i := range uint64(4) {
		got, err := GetAtIndex[int32](Int32Unaligned, seg, 2*i+1)
		if err != nil {
			t.Fatal(err)
		}
		if got != int32(10*i) {
			t.Errorf("points[%d].y = %d, want %d", i, got, 10*i)
		}
	}
	if _, err := Get[int32](y, seg, 4); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("coordinate past the segment: got %v", err)
	}
}

func TestBigEndianScenario(t *testing.T) {
	v := layout.Int32.WithOrder(layout.BigEndian).WithName("v")
	seq := layout.MustSequence(5, layout.MustStruct(layout.MustPadding(32), v))
	seg := native(t, 40)

	h, err := ForLayout(seq, layout.SequenceElementAt(2), layout.GroupElement("v"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Offset() != 20 || h.Coordinates() != 0 {
		t.Fatalf("handle %s", h)
	}
	if err := Set(h, seg, int32(0x01020304)); err != nil {
		t.Fatal(err)
	}
	raw, _ := seg.Read(20, 4)
	if raw[0] != 1 || raw[1] != 2 || raw[2] != 3 || raw[3] != 4 {
		t.Errorf("big-endian bytes %x", raw)
	}
	got, err := Get[int32](h, seg)
	if err != nil || got != 0x01020304 {
		t.Errorf("Get = %x, %v", got, err)
	}
}

func TestTiers(t *testing.T) {
	seg := native(t, 64)
	halfAligned, _ := Of(layout.CarrierInt, layout.NativeOrder(), 2)

	tests := []struct {
		name   string
		handle *Handle
		offset uint64
		plain  errors.Kind
		atomic errors.Kind
	}{
		{"aligned", halfAligned, 8, "", ""},
		{"partial", halfAligned, 6, "", errors.KindAlignment},
		{"misaligned", halfAligned, 5, errors.KindAlignment, errors.KindAlignment},
		{"unaligned_handle_odd", Int32Unaligned, 3, "", errors.KindAlignment},
		{"natural_misaligned", mustForLayout(t, layout.Int32), 2, errors.KindAlignment, errors.KindAlignment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.handle.WithOffset(0)
			if err != nil {
				t.Fatal(err)
			}
			sub, err := seg.SliceFrom(tt.offset)
			if err != nil {
				t.Fatal(err)
			}
			check := func(op string, err error, want errors.Kind) {
				t.Helper()
				if want == "" {
					if err != nil {
						t.Errorf("%s: %v", op, err)
					}
					return
				}
				if !errors.IsKind(err, want) {
					t.Errorf("%s: got %v, want %s", op, err, want)
				}
			}
			check("Set", Set(h, sub, int32(5)), tt.plain)
			_, err = Get[int32](h, sub)
			check("Get", err, tt.plain)
			_, err = GetVolatile[int32](h, sub)
			check("GetVolatile", err, tt.atomic)
			_, err = CompareAndSet(h, sub, int32(5), int32(6))
			check("CompareAndSet", err, tt.atomic)
		})
	}
}

func mustForLayout(t *testing.T, l layout.Layout, path ...layout.PathElement) *Handle {
	t.Helper()
	h, err := ForLayout(l, path...)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestCombinators(t *testing.T) {
	h := mustForLayout(t, layout.Int32)

	if _, err := h.WithOffset(3); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("WithOffset(3): got %v", err)
	}
	if _, err := h.WithStride(6); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("WithStride(6): got %v", err)
	}

	grid, err := h.WithStride(4)
	if err != nil {
		t.Fatal(err)
	}
	grid, err = grid.WithStride(16)
	if err != nil {
		t.Fatal(err)
	}
	grid, err = grid.WithOffset(8)
	if err != nil {
		t.Fatal(err)
	}
	if s := grid.Strides(); len(s) != 2 || s[0] != 16 || s[1] != 4 {
		t.Fatalf("strides %v, want [16 4]", s)
	}

	seg := native(t, 64)
	if err := Set(grid, seg, int32(-7), 2, 3); err != nil {
		t.Fatal(err)
	}
	// 8 + 2*16 + 3*4 = 52
	if got, _ := GetAtIndex[int32](h, seg, 13); got != -7 {
		t.Errorf("value at 52 = %d, want -7", got)
	}

	if _, err := Get[int32](grid, seg, 1); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("wrong coordinate count: got %v", err)
	}
	if _, err := Get[int32](grid, seg, math.MaxUint64, 1); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("overflowing coordinate: got %v", err)
	}
	if h.Coordinates() != 0 || h.Offset() != 0 {
		t.Error("combinators mutated the original handle")
	}
}

func TestTypeChecks(t *testing.T) {
	seg := native(t, 16)
	i32 := mustForLayout(t, layout.Int32)
	f64 := mustForLayout(t, layout.Float64)

	if _, err := Get[float32](i32, seg); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("float32 through int carrier: got %v", err)
	}
	if _, err := Get[int64](i32, seg); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("int64 through int carrier: got %v", err)
	}
	if err := Set(f64, seg, math.Pi); err != nil {
		t.Fatal(err)
	}
	if got, _ := Get[float64](f64, seg); got != math.Pi {
		t.Errorf("float64 round trip = %v", got)
	}
	if got, _ := Get[uint32](i32, seg); got == 0 {
		t.Error("uint32 view of the same bytes is zero")
	}
	if _, err := GetAndAdd(f64, seg, 1.0); !errors.IsKind(err, errors.KindUnsupported) {
		t.Errorf("GetAndAdd on float: got %v", err)
	}
	if _, err := Of(layout.Carrier(0), layout.NativeOrder(), 1); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("unknown carrier: got %v", err)
	}
	if _, err := Of(layout.CarrierInt, layout.NativeOrder(), 3); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("alignment 3: got %v", err)
	}
}

func TestAtomics(t *testing.T) {
	seg := native(t, 16)
	h := mustForLayout(t, layout.Int64)

	if err := SetVolatile(h, seg, int64(40)); err != nil {
		t.Fatal(err)
	}
	if prev, err := GetAndAdd(h, seg, int64(2)); err != nil || prev != 40 {
		t.Errorf("GetAndAdd = %d, %v", prev, err)
	}
	if ok, _ := CompareAndSet(h, seg, int64(41), int64(0)); ok {
		t.Error("CompareAndSet succeeded with a stale expected value")
	}
	if ok, _ := CompareAndSet(h, seg, int64(42), int64(-1)); !ok {
		t.Error("CompareAndSet failed with the current value")
	}
	if prev, _ := GetAndSet(h, seg, int64(9)); prev != -1 {
		t.Errorf("GetAndSet previous = %d", prev)
	}
	if v, _ := GetVolatile[int64](h, seg); v != 9 {
		t.Errorf("GetVolatile = %d", v)
	}

	foreign := h
	if layout.NativeOrder() == layout.LittleEndian {
		foreign = mustForLayout(t, layout.Int64.WithOrder(layout.BigEndian))
	} else {
		foreign = mustForLayout(t, layout.Int64.WithOrder(layout.LittleEndian))
	}
	if _, err := GetVolatile[int64](foreign, seg); !errors.IsKind(err, errors.KindUnsupported) {
		t.Errorf("atomic with foreign order: got %v", err)
	}
	if _, err := GetVolatile[int16](mustForLayout(t, layout.Int16), seg); !errors.IsKind(err, errors.KindUnsupported) {
		t.Errorf("atomic on 2-byte carrier: got %v", err)
	}
	if err := SetVolatile(h, seg.AsReadOnly(), int64(1)); !errors.IsKind(err, errors.KindReadOnly) {
		t.Errorf("atomic write to read-only: got %v", err)
	}
}

func TestConcurrentAdd(t *testing.T) {
	seg := native(t, 8)
	h := mustForLayout(t, layout.Int32)

	const workers, adds = 8, 1000
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range adds {
				if _, err := GetAndAdd(h, seg, int32(1)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if got, _ := Get[int32](h, seg); got != workers*adds {
		t.Errorf("sum = %d, want %d", got, workers*adds)
	}
}

func TestIndexHelpers(t *testing.T) {
	seg := segment.OfInt16s([]int16{1, 2, 3})
	h := Int16Unaligned

	if v, err := GetAtIndex[int16](h, seg, 2); err != nil || v != 3 {
		t.Errorf("GetAtIndex(2) = %d, %v", v, err)
	}
	if err := SetAtIndex(h, seg, 0, int16(-1)); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetAtIndex[int16](h, seg, 0); v != -1 {
		t.Errorf("after SetAtIndex = %d", v)
	}
	for _, idx := range []uint64{3, 4, math.MaxUint64 / 2} {
		if _, err := GetAtIndex[int16](h, seg, idx); !errors.IsKind(err, errors.KindOutOfBounds) {
			t.Errorf("GetAtIndex(%d): got %v", idx, err)
		}
	}
}

func TestMemoizedValueHandles(t *testing.T) {
	a := mustForLayout(t, layout.Float32)
	b := mustForLayout(t, layout.Float32)
	if a != b {
		t.Error("value handles are not memoized")
	}
	if Unaligned(layout.CarrierInt, layout.BigEndian).Order() != layout.BigEndian {
		t.Error("Unaligned order")
	}
	if Unaligned(layout.Carrier(0), layout.BigEndian) != nil {
		t.Error("Unaligned for unknown carrier")
	}
}

func TestLifetime(t *testing.T) {
	sc := scope.NewConfined()
	seg, err := segment.AllocateNative(8, 8, sc)
	if err != nil {
		t.Fatal(err)
	}
	_ = sc.Close()
	if _, err := Get[int32](Int32Unaligned, seg); !errors.IsKind(err, errors.KindLifetime) {
		t.Errorf("Get after close: got %v", err)
	}
}
