package layout

import (
	"fmt"
	"maps"
	"math/bits"

	"github.com/wippyai/memseg/errors"
)

// Layout is an immutable description of memory shape. Sizes and alignments
// are measured in bits. The set of implementations is closed: *Padding,
// *Value, *Sequence and *Group.
type Layout interface {
	// BitSize fails if an unbounded sequence is reachable.
	BitSize() (uint64, error)
	// ByteSize fails like BitSize and when the bit size is not a whole number of bytes.
	ByteSize() (uint64, error)
	HasSize() bool
	BitAlignment() uint64
	ByteAlignment() uint64
	Name() (string, bool)
	Attribute(key string) (string, bool)
	IsPadding() bool
	Equal(other Layout) bool
	String() string

	BitOffset(path ...PathElement) (uint64, error)
	ByteOffset(path ...PathElement) (uint64, error)
	Select(path ...PathElement) (Layout, error)
	Map(fn func(Layout) (Layout, error), path ...PathElement) (Layout, error)
	Plan(path ...PathElement) (AccessPlan, error)

	decorations() *decor
	naturalAlignment() uint64
	redecorate(d decor) Layout
}

// decor holds the properties shared by every layout kind. attrs is never
// mutated after construction; updates copy it.
type decor struct {
	attrs   map[string]string
	name    string
	align   uint64
	hasName bool
}

func (d *decor) decorations() *decor { return d }

// Name returns the layout name, if any.
func (d *decor) Name() (string, bool) {
	return d.name, d.hasName
}

// Attribute returns the value stored under key, if any.
func (d *decor) Attribute(key string) (string, bool) {
	v, ok := d.attrs[key]
	return v, ok
}

// Attributes returns a copy of the attribute map.
func (d *decor) Attributes() map[string]string {
	return maps.Clone(d.attrs)
}

func (d decor) withName(name string) decor {
	d.name = name
	d.hasName = true
	return d
}

func (d decor) withAttribute(key, value string) decor {
	attrs := make(map[string]string, len(d.attrs)+1)
	maps.Copy(attrs, d.attrs)
	attrs[key] = value
	d.attrs = attrs
	return d
}

func (d decor) withAlignment(bits uint64) (decor, error) {
	if err := checkAlignment(bits); err != nil {
		return d, err
	}
	d.align = bits
	return d, nil
}

func checkAlignment(bits uint64) error {
	if bits < 8 || bits&(bits-1) != 0 {
		return errors.Construction(errors.PhaseLayout, "invalid alignment %d bits: must be a power of two >= 8", bits)
	}
	return nil
}

func bitAlignment(l Layout) uint64 {
	if a := l.decorations().align; a != 0 {
		return a
	}
	return l.naturalAlignment()
}

func byteSize(l Layout) (uint64, error) {
	size, err := l.BitSize()
	if err != nil {
		return 0, err
	}
	if size%8 != 0 {
		return 0, errors.New(errors.PhaseLayout, errors.KindConstruction).
			Layout(l.String()).
			Detail("bit size %d is not a multiple of 8", size).
			Build()
	}
	return size / 8, nil
}

// decorate applies the name and alignment decorations to a rendered layout.
func decorate(l Layout, s string) string {
	d := l.decorations()
	if d.hasName {
		s = fmt.Sprintf("%s(%s)", s, d.name)
	}
	if a := bitAlignment(l); a != l.naturalAlignment() {
		s = fmt.Sprintf("%d%%%s", a, s)
	}
	return s
}

func equalDecor(a, b Layout) bool {
	da, db := a.decorations(), b.decorations()
	if da.hasName != db.hasName || da.name != db.name {
		return false
	}
	if bitAlignment(a) != bitAlignment(b) {
		return false
	}
	if !maps.Equal(da.attrs, db.attrs) {
		return false
	}
	if a.HasSize() != b.HasSize() {
		return false
	}
	if a.HasSize() {
		sa, _ := a.BitSize()
		sb, _ := b.BitSize()
		return sa == sb
	}
	return true
}

// Named returns a copy of l with the given name.
func Named(l Layout, name string) Layout {
	return l.redecorate(l.decorations().withName(name))
}

// Aligned returns a copy of l with the given alignment override in bits.
func Aligned(l Layout, bits uint64) (Layout, error) {
	d, err := l.decorations().withAlignment(bits)
	if err != nil {
		return nil, err
	}
	return l.redecorate(d), nil
}

// WithAttribute returns a copy of l with key set to value.
func WithAttribute(l Layout, key, value string) Layout {
	return l.redecorate(l.decorations().withAttribute(key, value))
}

// Padding is a layout that occupies space but is never dereferenced.
type Padding struct {
	decor
	bits uint64
}

// PaddingLayout creates a padding layout of the given bit size.
func PaddingLayout(bits uint64) (*Padding, error) {
	if bits == 0 {
		return nil, errors.Construction(errors.PhaseLayout, "padding size must be positive")
	}
	return &Padding{bits: bits}, nil
}

// MustPadding is like PaddingLayout but panics on error.
func MustPadding(bits uint64) *Padding {
	p, err := PaddingLayout(bits)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Padding) BitSize() (uint64, error)  { return p.bits, nil }
func (p *Padding) ByteSize() (uint64, error) { return byteSize(p) }
func (p *Padding) HasSize() bool             { return true }
func (p *Padding) BitAlignment() uint64      { return bitAlignment(p) }
func (p *Padding) ByteAlignment() uint64     { return bitAlignment(p) / 8 }
func (p *Padding) IsPadding() bool           { return true }
func (p *Padding) naturalAlignment() uint64  { return 8 }

func (p *Padding) redecorate(d decor) Layout {
	return &Padding{decor: d, bits: p.bits}
}

// WithName returns a copy with the given name.
func (p *Padding) WithName(name string) *Padding {
	return &Padding{decor: p.decor.withName(name), bits: p.bits}
}

// WithBitAlignment returns a copy with the given alignment override.
func (p *Padding) WithBitAlignment(bits uint64) (*Padding, error) {
	d, err := p.decor.withAlignment(bits)
	if err != nil {
		return nil, err
	}
	return &Padding{decor: d, bits: p.bits}, nil
}

func (p *Padding) Equal(other Layout) bool {
	o, ok := other.(*Padding)
	return ok && equalDecor(p, o)
}

func (p *Padding) String() string {
	return decorate(p, fmt.Sprintf("x%d", p.bits))
}

func (p *Padding) BitOffset(path ...PathElement) (uint64, error) { return bitOffset(p, path) }
func (p *Padding) ByteOffset(path ...PathElement) (uint64, error) {
	return byteOffset(p, path)
}
func (p *Padding) Select(path ...PathElement) (Layout, error) { return selectPath(p, path) }
func (p *Padding) Map(fn func(Layout) (Layout, error), path ...PathElement) (Layout, error) {
	return mapPath(p, fn, path)
}
func (p *Padding) Plan(path ...PathElement) (AccessPlan, error) { return plan(p, path) }

func mulBits(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func addBits(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
