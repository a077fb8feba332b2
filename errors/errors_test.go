package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseAccess,
				Kind:   KindConstruction,
				Path:   []string{"points", "[2]", "x"},
				GoType: "float64",
				Layout: "b32",
				Detail: "carrier mismatch",
			},
			contains: []string{"[access]", "construction", "points/[2]/x", "float64", "b32", "carrier mismatch"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseSegment,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[segment]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindExhausted,
				Detail: "mmap failed",
				Cause:  errors.New("cannot allocate memory"),
			},
			contains: []string{"[alloc]", "exhausted", "mmap failed", "caused by", "cannot allocate memory"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseMap,
		Kind:  KindInvalidInput,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see through to the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseScope,
		Kind:  KindDependency,
	}

	if !err.Is(&Error{Phase: PhaseScope, Kind: KindDependency}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseSegment, Kind: KindDependency}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseScope, Kind: KindLifetime}) {
		t.Error("Is should not match different kind")
	}

	if !errors.Is(err, ErrDependency) {
		t.Error("kind sentinel should match regardless of phase")
	}
	if errors.Is(err, ErrLifetime) {
		t.Error("kind sentinel of another kind should not match")
	}
}

func TestIsKind(t *testing.T) {
	inner := Lifetime(PhaseScope, "scope")
	wrapped := fmt.Errorf("close: %w", inner)

	if !IsKind(wrapped, KindLifetime) {
		t.Error("IsKind should walk the wrap chain")
	}
	if IsKind(wrapped, KindOutOfBounds) {
		t.Error("IsKind matched wrong kind")
	}
	if IsKind(nil, KindLifetime) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLayout, KindConstruction).
		Path("a", "b").
		GoType("int32").
		Layout("b64").
		Value(42).
		Cause(cause).
		Detail("expected %d bits, got %d", 32, 64).
		Build()

	if err.Phase != PhaseLayout {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLayout)
	}
	if err.Kind != KindConstruction {
		t.Errorf("Kind = %v, want %v", err.Kind, KindConstruction)
	}
	if len(err.Path) != 2 || err.Path[0] != "a" || err.Path[1] != "b" {
		t.Errorf("Path = %v, want [a b]", err.Path)
	}
	if err.GoType != "int32" || err.Layout != "b64" {
		t.Errorf("GoType=%v Layout=%v", err.GoType, err.Layout)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected 32 bits, got 64" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
		want string
	}{
		{"Construction", Construction(PhaseLayout, "bad alignment %d", 3), KindConstruction, "bad alignment 3"},
		{"OutOfBounds", OutOfBounds(PhaseSegment, 10, 4, 12), KindOutOfBounds, "size 12"},
		{"IndexOutOfBounds", IndexOutOfBounds(PhaseLayout, []string{"[7]"}, 7, 5), KindOutOfBounds, "count 5"},
		{"Overflow", Overflow(PhaseAccess, "index * stride", 1<<63, 4), KindOverflow, "index * stride"},
		{"Lifetime", Lifetime(PhaseScope, "scope 3"), KindLifetime, "scope 3 is not alive"},
		{"Confinement", Confinement(PhaseScope, 1, 2), KindConfinement, "goroutine 2"},
		{"Misaligned", Misaligned(PhaseAccess, 0x1001, 4, "get"), KindAlignment, "0x1001"},
		{"Exhausted", Exhausted(PhaseAlloc, 1024, 8, "limit reached"), KindExhausted, "1024 bytes"},
		{"Dependency", Dependency(PhaseScope, "already closed"), KindDependency, "already closed"},
		{"ReadOnly", ReadOnly(PhaseSegment), KindReadOnly, "read-only"},
		{"Unsupported", Unsupported(PhaseAccess, "atomic on b16"), KindUnsupported, "atomic on b16"},
		{"InvalidInput", InvalidInput(PhaseMap, "negative offset"), KindInvalidInput, "negative offset"},
		{"TypeMismatch", TypeMismatch(PhaseAccess, "float32", "b32"), KindConstruction, "carrier mismatch"},
		{"Wrap", Wrap(PhaseMap, KindInvalidInput, errors.New("x"), "open file"), KindInvalidInput, "open file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.want) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.want)
			}
		})
	}
}
