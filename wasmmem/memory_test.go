package wasmmem

import (
	"context"
	"testing"
	"unsafe"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/memseg/access"
	"github.com/wippyai/memseg/alloc"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

// memoryWASM is a minimal WASM module with 1 page of memory exported as "memory"
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory" (6 bytes + string)
	0x02, 0x00, // kind: memory, index 0
}

func instantiate(t *testing.T) (context.Context, wazero.Runtime, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	compiled, err := rt.CompileModule(ctx, memoryWASM)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	return ctx, rt, mod
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("expected nil for nil memory")
	}
	if _, err := Segment(nil); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("Segment(nil): got %v", err)
	}
}

func TestWrapper_ReadWrite(t *testing.T) {
	_, _, mod := instantiate(t)
	mem := Wrap(mod.ExportedMemory("memory"))

	data := []byte{1, 2, 3, 4}
	if err := mem.Write(0, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	read, err := mem.Read(0, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, b := range read {
		if b != data[i] {
			t.Errorf("byte %d: expected %d, got %d", i, data[i], b)
		}
	}
	if mem.Size() != 65536 {
		t.Errorf("Size() = %d", mem.Size())
	}
}

func TestWrapper_OutOfBounds(t *testing.T) {
	_, _, mem := instantiate(t)
	w := Wrap(mem.ExportedMemory("memory"))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"read_at_end", func() error { _, err := w.Read(65536, 1); return err }},
		{"write_at_end", func() error { return w.Write(65536, []byte{1}) }},
		{"read_u32_straddling", func() error { _, err := w.ReadU32(65534); return err }},
		{"write_u64_beyond_32bit", func() error { return w.WriteU64(1<<32, 1) }},
		{"read_u8_beyond_32bit", func() error { _, err := w.ReadU8(1 << 40); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.IsKind(err, errors.KindOutOfBounds) {
				t.Errorf("got %v, want out of bounds", err)
			}
		})
	}
}

func TestWrapper_IntegerReadWrite(t *testing.T) {
	_, _, mod := instantiate(t)
	mem := Wrap(mod.ExportedMemory("memory"))

	if err := mem.WriteU8(0, 42); err != nil {
		t.Fatalf("WriteU8 failed: %v", err)
	}
	if v, _ := mem.ReadU8(0); v != 42 {
		t.Errorf("ReadU8: expected 42, got %d", v)
	}
	if err := mem.WriteU16(0, 0x1234); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	if v, _ := mem.ReadU16(0); v != 0x1234 {
		t.Errorf("ReadU16: expected 0x1234, got 0x%x", v)
	}
	if err := mem.WriteU32(0, 0x12345678); err != nil {
		t.Fatalf("WriteU32 failed: %v", err)
	}
	if v, _ := mem.ReadU32(0); v != 0x12345678 {
		t.Errorf("ReadU32: expected 0x12345678, got 0x%x", v)
	}
	if err := mem.WriteU64(0, 0x123456789ABCDEF0); err != nil {
		t.Fatalf("WriteU64 failed: %v", err)
	}
	if v, _ := mem.ReadU64(0); v != 0x123456789ABCDEF0 {
		t.Errorf("ReadU64: expected 0x123456789ABCDEF0, got 0x%x", v)
	}
}

func TestSegmentView(t *testing.T) {
	_, _, mod := instantiate(t)
	mem := mod.ExportedMemory("memory")

	seg, err := Segment(mem)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Size() != 65536 || seg.Kind() != segment.KindBuffer {
		t.Fatalf("segment %s", seg)
	}
	h, _ := access.ForLayout(layout.Int32.WithOrder(layout.LittleEndian))
	if err := access.Set(h, seg, int32(-5)); err != nil {
		t.Fatal(err)
	}
	if v, ok := mem.ReadUint32Le(0); !ok || int32(v) != -5 {
		t.Errorf("guest sees %d", int32(v))
	}
	if _, err := seg.ReadU32(65534); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("read past guest memory: got %v", err)
	}
}

// reallocWASM imports host.bump and re-exports it as cabi_realloc next to a
// one page memory:
//
//	(import "host" "bump" (func (param i32 i32 i32 i32) (result i32)))
//	(memory (export "memory") 1)
//	(func (export "cabi_realloc") (param i32 i32 i32 i32) (result i32)
//	  local.get 0 local.get 1 local.get 2 local.get 3 call 0)
var reallocWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x01, 0x09, 0x01, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, // type section: (i32 x4) -> i32
	0x02, 0x0d, 0x01, // import section: 13 bytes, 1 import
	0x04, 0x68, 0x6f, 0x73, 0x74, // "host"
	0x04, 0x62, 0x75, 0x6d, 0x70, // "bump"
	0x00, 0x00, // kind: func, type 0
	0x03, 0x02, 0x01, 0x00, // function section: 1 func of type 0
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x19, 0x02, // export section: 25 bytes, 2 exports
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // "memory", memory 0
	0x0c, 0x63, 0x61, 0x62, 0x69, 0x5f, 0x72, 0x65, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x00, 0x01, // "cabi_realloc", func 1
	0x0a, 0x0e, 0x01, 0x0c, 0x00, // code section: 1 body of 12 bytes, no locals
	0x20, 0x00, 0x20, 0x01, 0x20, 0x02, 0x20, 0x03, // local.get 0..3
	0x10, 0x00, // call 0
	0x0b, // end
}

// bumpHost backs the guest's cabi_realloc with a bump pointer and records
// frees.
type bumpHost struct {
	next  uint32
	freed []uint32
}

func (b *bumpHost) realloc(_ context.Context, oldPtr, _, align, newSize uint32) uint32 {
	if newSize == 0 {
		b.freed = append(b.freed, oldPtr)
		return 0
	}
	ptr := (b.next + align - 1) &^ (align - 1)
	b.next = ptr + newSize
	return ptr
}

func instantiateGuest(t *testing.T, host *bumpHost) (context.Context, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	if _, err := rt.NewHostModuleBuilder("host").
		NewFunctionBuilder().
		WithFunc(host.realloc).
		Export("bump").
		Instantiate(ctx); err != nil {
		t.Fatalf("failed to instantiate host: %v", err)
	}
	mod, err := rt.Instantiate(ctx, reallocWASM)
	if err != nil {
		t.Fatalf("failed to instantiate guest: %v", err)
	}
	return ctx, mod
}

func TestGuestAllocator(t *testing.T) {
	host := &bumpHost{next: 1024}
	ctx, mod := instantiateGuest(t, host)

	ga, err := NewGuestAllocator(ctx, mod)
	if err != nil {
		t.Fatal(err)
	}
	var _ alloc.Allocator = ga

	pair := layout.MustStruct(layout.Int8, layout.MustPadding(24), layout.Int32)
	seg, err := alloc.AllocateLayout(ga, pair)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Size() != 8 {
		t.Errorf("Size() = %d", seg.Size())
	}
	whole, _ := Segment(ga.Mem)
	if off, _ := whole.SegmentOffset(seg); off != 1024 {
		t.Errorf("guest pointer = %d, want 1024", off)
	}
	if err := seg.WriteU32(4, 99); err != nil {
		t.Fatal(err)
	}
	if v, _ := ga.Mem.ReadUint32Le(1028); v != 99 {
		t.Errorf("guest memory at 1028 = %d", v)
	}

	next, err := ga.Allocate(16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if off, _ := whole.SegmentOffset(next); off != 1040 {
		t.Errorf("second guest pointer = %d, want 1040", off)
	}

	if err := ga.Free(seg, 4); err != nil {
		t.Fatal(err)
	}
	if len(host.freed) != 1 || host.freed[0] != 1024 {
		t.Errorf("freed = %v", host.freed)
	}

	if _, err := ga.Allocate(8, 3); !errors.IsKind(err, errors.KindConstruction) {
		t.Errorf("alignment 3: got %v", err)
	}
}

func TestGuestAllocator_FreeOutside(t *testing.T) {
	host := &bumpHost{next: 1024}
	ctx, mod := instantiateGuest(t, host)
	ga, err := NewGuestAllocator(ctx, mod)
	if err != nil {
		t.Fatal(err)
	}
	whole, _ := Segment(ga.Mem)
	tail, _ := whole.SliceFrom(whole.Size() - 8)

	sc := scope.NewShared()
	t.Cleanup(func() { _ = sc.Close() })
	native, err := segment.AllocateNative(8, 8, sc)
	if err != nil {
		t.Fatal(err)
	}

	// starts inside guest memory but runs 8 bytes past its end; never
	// dereferenced
	last, _ := ga.Mem.Read(uint32(whole.Size()-8), 8)
	overhang := segment.OfView(unsafe.Slice(unsafe.SliceData(last), 16))

	tests := []struct {
		name string
		seg  *segment.Segment
	}{
		{"host_heap", segment.OfBytes(make([]byte, 8))},
		{"native", native},
		{"past_end", overhang},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ga.Free(tt.seg, 1); !errors.IsKind(err, errors.KindOutOfBounds) {
				t.Errorf("got %v, want out of bounds", err)
			}
		})
	}
	if len(host.freed) != 0 {
		t.Errorf("foreign segments reached the guest: %v", host.freed)
	}
	if err := ga.Free(tail, 1); err != nil {
		t.Errorf("Free(tail): %v", err)
	}
}

func TestNewGuestAllocator_MissingExports(t *testing.T) {
	ctx, _, mod := instantiate(t)
	if _, err := NewGuestAllocator(ctx, mod); !errors.IsKind(err, errors.KindUnsupported) {
		t.Errorf("module without realloc: got %v", err)
	}
}
