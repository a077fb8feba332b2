package layout

import (
	"fmt"
	"strconv"

	"github.com/wippyai/memseg/errors"
)

type elemKind uint8

const (
	elemGroup elemKind = iota
	elemIndex
	elemAll
	elemRange
)

// PathElement is one navigation step in a layout path.
type PathElement struct {
	name  string
	index uint64
	step  uint64
	kind  elemKind
}

// GroupElement selects the member named name. When several members share the
// name, the one with the lowest offset is selected.
func GroupElement(name string) PathElement {
	return PathElement{kind: elemGroup, name: name}
}

// SequenceElementAt selects the element at a fixed index.
func SequenceElementAt(index uint64) PathElement {
	return PathElement{kind: elemIndex, index: index}
}

// SequenceElements selects every element, adding one free dimension.
func SequenceElements() PathElement {
	return PathElement{kind: elemAll}
}

// SequenceRange selects elements start, start+step, ..., adding one free
// dimension. step must be positive.
func SequenceRange(start, step uint64) PathElement {
	return PathElement{kind: elemRange, index: start, step: step}
}

// IsFree reports whether the element introduces a free dimension.
func (e PathElement) IsFree() bool {
	return e.kind == elemAll || e.kind == elemRange
}

func (e PathElement) String() string {
	switch e.kind {
	case elemGroup:
		return e.name
	case elemIndex:
		return "[" + strconv.FormatUint(e.index, 10) + "]"
	case elemAll:
		return "[*]"
	default:
		return fmt.Sprintf("[%d::%d]", e.index, e.step)
	}
}

// AccessPlan describes how to reach a value layout: a static byte offset plus
// one byte stride per free dimension, outermost first.
type AccessPlan struct {
	Strides     []uint64
	OffsetBytes uint64
	AlignBytes  uint64
	Carrier     Carrier
	Order       ByteOrder
}

// pathState is the running (layout, bit offset) pair threaded through a path.
type pathState struct {
	layout   Layout
	trail    []string
	strides  []uint64
	offset   uint64
	hasFixed bool
	hasFree  bool
}

func (ps *pathState) fail(format string, args ...any) error {
	return errors.New(errors.PhaseLayout, errors.KindConstruction).
		Path(ps.trail...).
		Layout(ps.layout.String()).
		Detail(format, args...).
		Build()
}

func (ps *pathState) step(e PathElement) error {
	ps.trail = append(ps.trail, e.String())

	if e.kind == elemGroup {
		g, ok := ps.layout.(*Group)
		if !ok {
			return ps.fail("group element %q selected from a non-group layout", e.name)
		}
		i, ok := g.member(e.name)
		if !ok {
			return ps.fail("no member named %q", e.name)
		}
		off, err := g.memberOffset(i)
		if err != nil {
			return err
		}
		if ps.offset, ok = addBits(ps.offset, off); !ok {
			return errors.Overflow(errors.PhaseLayout, "path offset", ps.offset, off)
		}
		ps.layout = g.members[i]
		return nil
	}

	seq, ok := ps.layout.(*Sequence)
	if !ok {
		return ps.fail("sequence element selected from a non-sequence layout")
	}
	elemSize, err := seq.elem.BitSize()
	if err != nil {
		return err
	}

	switch e.kind {
	case elemIndex:
		if seq.bounded && e.index >= seq.count {
			return errors.IndexOutOfBounds(errors.PhaseLayout, ps.trail, e.index, seq.count)
		}
		if err := ps.advance(elemSize, e.index); err != nil {
			return err
		}
		ps.hasFixed = true
	case elemAll:
		ps.strides = append(ps.strides, elemSize)
		ps.hasFree = true
	case elemRange:
		if e.step == 0 {
			return ps.fail("range step must be positive")
		}
		if seq.bounded && e.index >= seq.count {
			return errors.IndexOutOfBounds(errors.PhaseLayout, ps.trail, e.index, seq.count)
		}
		if err := ps.advance(elemSize, e.index); err != nil {
			return err
		}
		stride, ok := mulBits(elemSize, e.step)
		if !ok {
			return errors.Overflow(errors.PhaseLayout, "range stride", elemSize, e.step)
		}
		ps.strides = append(ps.strides, stride)
		ps.hasFree = true
	}
	ps.layout = seq.elem
	return nil
}

func (ps *pathState) advance(elemSize, index uint64) error {
	delta, ok := mulBits(elemSize, index)
	if !ok {
		return errors.Overflow(errors.PhaseLayout, "element offset", elemSize, index)
	}
	if ps.offset, ok = addBits(ps.offset, delta); !ok {
		return errors.Overflow(errors.PhaseLayout, "path offset", ps.offset, delta)
	}
	return nil
}

func walk(root Layout, path []PathElement) (*pathState, error) {
	ps := &pathState{layout: root}
	for _, e := range path {
		if err := ps.step(e); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func bitOffset(root Layout, path []PathElement) (uint64, error) {
	ps, err := walk(root, path)
	if err != nil {
		return 0, err
	}
	if ps.hasFree {
		return 0, ps.fail("path with free dimensions has no static offset")
	}
	return ps.offset, nil
}

func byteOffset(root Layout, path []PathElement) (uint64, error) {
	off, err := bitOffset(root, path)
	if err != nil {
		return 0, err
	}
	if off%8 != 0 {
		return 0, errors.Construction(errors.PhaseLayout, "bit offset %d is not a multiple of 8", off)
	}
	return off / 8, nil
}

func selectPath(root Layout, path []PathElement) (Layout, error) {
	ps, err := walk(root, path)
	if err != nil {
		return nil, err
	}
	if ps.hasFixed {
		return nil, ps.fail("path with a fixed sequence index selects one element, not a layout")
	}
	return ps.layout, nil
}

func mapPath(root Layout, fn func(Layout) (Layout, error), path []PathElement) (Layout, error) {
	// validate the whole path first so errors carry the full trail
	if _, err := selectPath(root, path); err != nil {
		return nil, err
	}
	return mapAt(root, fn, path)
}

func mapAt(l Layout, fn func(Layout) (Layout, error), path []PathElement) (Layout, error) {
	if len(path) == 0 {
		out, err := fn(l)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errors.Construction(errors.PhaseLayout, "map function returned nil layout")
		}
		return out, nil
	}

	e := path[0]
	switch v := l.(type) {
	case *Group:
		i, _ := v.member(e.name)
		m, err := mapAt(v.members[i], fn, path[1:])
		if err != nil {
			return nil, err
		}
		g := v.withMember(i, m)
		if g.HasSize() {
			if _, err := g.BitSize(); err != nil {
				return nil, err
			}
		}
		return g, nil
	case *Sequence:
		elem, err := mapAt(v.elem, fn, path[1:])
		if err != nil {
			return nil, err
		}
		var seq *Sequence
		if v.bounded {
			seq, err = SequenceLayout(v.count, elem)
		} else {
			seq, err = UnboundedSequence(elem)
		}
		if err != nil {
			return nil, err
		}
		seq.decor = v.decor
		return seq, nil
	}
	return nil, errors.Construction(errors.PhaseLayout, "cannot map through %s", l)
}

func plan(root Layout, path []PathElement) (AccessPlan, error) {
	ps, err := walk(root, path)
	if err != nil {
		return AccessPlan{}, err
	}
	v, ok := ps.layout.(*Value)
	if !ok {
		return AccessPlan{}, ps.fail("path does not select a value layout")
	}
	if ps.offset%8 != 0 {
		return AccessPlan{}, ps.fail("bit offset %d is not a multiple of 8", ps.offset)
	}
	strides := make([]uint64, len(ps.strides))
	for i, s := range ps.strides {
		if s%8 != 0 {
			return AccessPlan{}, ps.fail("stride %d bits is not a multiple of 8", s)
		}
		strides[i] = s / 8
	}
	return AccessPlan{
		Strides:     strides,
		OffsetBytes: ps.offset / 8,
		AlignBytes:  v.ByteAlignment(),
		Carrier:     v.carrier,
		Order:       v.order,
	}, nil
}
