package wasmmem

import (
	"testing"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

func TestTable_Basic(t *testing.T) {
	table := NewTable()
	defer table.Close()

	seg := segment.OfBytes([]byte("test"))

	h, err := table.Lend(seg)
	if err != nil {
		t.Fatalf("Lend: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	got, ok := table.Get(h)
	if !ok || got != seg {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	if _, ok := table.Get(0); ok {
		t.Fatal("handle 0 should never resolve")
	}
	if _, ok := table.Get(h + 1); ok {
		t.Fatal("unknown handle should not resolve")
	}

	dropped, err := table.Drop(h)
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if dropped != seg {
		t.Fatal("Drop returned the wrong segment")
	}
	if table.Len() != 0 {
		t.Fatalf("Expected Len() == 0 after Drop, got %d", table.Len())
	}
}

func TestTable_HandleReuse(t *testing.T) {
	table := NewTable()
	defer table.Close()

	h1, _ := table.Lend(segment.OfBytes(make([]byte, 1)))
	h2, _ := table.Lend(segment.OfBytes(make([]byte, 2)))
	if h1 == h2 {
		t.Fatal("live handles must differ")
	}

	if _, err := table.Drop(h1); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	h3, _ := table.Lend(segment.OfBytes(make([]byte, 3)))
	if h3 != h1 {
		t.Errorf("expected freed handle %d to be reused, got %d", h1, h3)
	}
	if table.Len() != 2 {
		t.Errorf("Len = %d, want 2", table.Len())
	}
}

func TestTable_Borrows(t *testing.T) {
	table := NewTable()
	defer table.Close()

	h, _ := table.Lend(segment.OfBytes(make([]byte, 8)))

	if _, ok := table.Borrow(h); !ok {
		t.Fatal("Borrow failed")
	}
	_, err := table.Drop(h)
	if !errors.IsKind(err, errors.KindDependency) {
		t.Fatalf("Drop with borrow: expected dependency error, got %v", err)
	}

	if !table.Return(h) {
		t.Fatal("Return failed")
	}
	if table.Return(h) {
		t.Fatal("Return without borrow should fail")
	}
	if _, err := table.Drop(h); err != nil {
		t.Fatalf("Drop after return: %v", err)
	}
}

func TestTable_PinsScope(t *testing.T) {
	table := NewTable()
	defer table.Close()

	sc := scope.NewShared()
	seg, err := segment.AllocateNative(64, 8, sc)
	if err != nil {
		t.Fatalf("AllocateNative: %v", err)
	}

	h, err := table.Lend(seg)
	if err != nil {
		t.Fatalf("Lend: %v", err)
	}
	if err := sc.Close(); !errors.IsKind(err, errors.KindDependency) {
		t.Fatalf("close while lent: expected dependency error, got %v", err)
	}

	if _, err := table.Drop(h); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("close after drop: %v", err)
	}
	if _, err := table.Lend(seg); !errors.IsKind(err, errors.KindLifetime) {
		t.Fatalf("lend closed segment: expected lifetime error, got %v", err)
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()

	sc := scope.NewShared()
	seg, err := segment.AllocateNative(16, 8, sc)
	if err != nil {
		t.Fatalf("AllocateNative: %v", err)
	}
	h, _ := table.Lend(seg)
	table.Borrow(h)

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sc.Close(); err != nil {
		t.Fatalf("scope close after table close: %v", err)
	}
	if _, err := table.Lend(segment.OfBytes(make([]byte, 1))); !errors.IsKind(err, errors.KindLifetime) {
		t.Fatalf("lend after close: expected lifetime error, got %v", err)
	}
}
