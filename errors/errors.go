package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which subsystem raised the error
type Phase string

const (
	PhaseLayout  Phase = "layout"  // layout construction and path evaluation
	PhaseScope   Phase = "scope"   // lifetime transitions
	PhaseSegment Phase = "segment" // segment construction, slicing, dereference
	PhaseAccess  Phase = "access"  // accessor derivation and typed access
	PhaseAlloc   Phase = "alloc"   // allocators
	PhaseMap     Phase = "map"     // file mappings
)

// Kind categorizes the error
type Kind string

const (
	KindConstruction Kind = "construction"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindLifetime     Kind = "lifetime"
	KindConfinement  Kind = "confinement"
	KindAlignment    Kind = "alignment"
	KindExhausted    Kind = "exhausted"
	KindDependency   Kind = "dependency"
	KindReadOnly     Kind = "read_only"
	KindUnsupported  Kind = "unsupported"
	KindOverflow     Kind = "overflow"
	KindInvalidInput Kind = "invalid_input"
)

// Kind sentinels for errors.Is. A sentinel has no Phase and matches any
// error of the same Kind.
var (
	ErrConstruction = &Error{Kind: KindConstruction}
	ErrBounds       = &Error{Kind: KindOutOfBounds}
	ErrLifetime     = &Error{Kind: KindLifetime}
	ErrConfinement  = &Error{Kind: KindConfinement}
	ErrAlignment    = &Error{Kind: KindAlignment}
	ErrExhausted    = &Error{Kind: KindExhausted}
	ErrDependency   = &Error{Kind: KindDependency}
	ErrReadOnly     = &Error{Kind: KindReadOnly}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrOverflow     = &Error{Kind: KindOverflow}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Layout string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	if e.GoType != "" || e.Layout != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Layout != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", layout ")
			b.WriteString(e.Layout)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("layout ")
			b.WriteString(e.Layout)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Layout != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// IsKind reports whether err is an *Error of the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &Error{Kind: kind})
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the layout path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Layout sets the rendered layout
func (b *Builder) Layout(l string) *Builder {
	b.err.Layout = l
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Construction creates an error for an invalid layout, handle or allocation request
func Construction(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConstruction,
		Detail: fmt.Sprintf(format, args...),
	}
}

// OutOfBounds creates an out of bounds error for an access of length bytes at offset
func OutOfBounds(phase Phase, offset, length, size uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access [%d, %d+%d) out of bounds (size %d)", offset, offset, length, size),
		Value:  offset,
	}
}

// IndexOutOfBounds creates an out of bounds error for a layout path index
func IndexOutOfBounds(phase Phase, path []string, index, count uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (count %d)", index, count),
		Value:  index,
	}
}

// Overflow creates an arithmetic overflow error
func Overflow(phase Phase, what string, a, b uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("%s overflows: %d, %d", what, a, b),
	}
}

// Lifetime creates an error for use of a scope that is no longer alive
func Lifetime(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLifetime,
		Detail: fmt.Sprintf("%s is not alive", what),
	}
}

// Confinement creates an error for access from a goroutine other than the owner
func Confinement(phase Phase, owner, caller uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConfinement,
		Detail: fmt.Sprintf("goroutine %d is not the owner (goroutine %d)", caller, owner),
		Value:  caller,
	}
}

// Misaligned creates an alignment error for an address that does not satisfy align
func Misaligned(phase Phase, address uint64, align uint64, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlignment,
		Detail: fmt.Sprintf("%s at address 0x%x requires %d-byte alignment", op, address, align),
		Value:  address,
	}
}

// Exhausted creates an allocation failure error
func Exhausted(phase Phase, size, align uint64, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("cannot allocate %d bytes (align %d): %s", size, align, detail),
	}
}

// Dependency creates an error for a close that is not permitted
func Dependency(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDependency,
		Detail: detail,
	}
}

// ReadOnly creates an error for a write through a read-only segment
func ReadOnly(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReadOnly,
		Detail: "segment is read-only",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// TypeMismatch creates an error for a Go type that does not fit a layout carrier
func TypeMismatch(phase Phase, goType, layout string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindConstruction,
		GoType: goType,
		Layout: layout,
		Detail: "carrier mismatch",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
