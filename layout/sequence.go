package layout

import (
	"fmt"

	"github.com/wippyai/memseg/errors"
)

// Sequence is a layout repeating an element layout count times. A sequence
// without a count is unbounded and has no size.
type Sequence struct {
	decor
	elem    Layout
	count   uint64
	bounded bool
}

// SequenceLayout creates a bounded sequence.
func SequenceLayout(count uint64, elem Layout) (*Sequence, error) {
	if elem == nil {
		return nil, errors.Construction(errors.PhaseLayout, "sequence element is nil")
	}
	if elem.HasSize() {
		size, _ := elem.BitSize()
		if _, ok := mulBits(size, count); !ok {
			return nil, errors.Overflow(errors.PhaseLayout, "sequence size", size, count)
		}
	}
	return &Sequence{elem: elem, count: count, bounded: true}, nil
}

// MustSequence is like SequenceLayout but panics on error.
func MustSequence(count uint64, elem Layout) *Sequence {
	s, err := SequenceLayout(count, elem)
	if err != nil {
		panic(err)
	}
	return s
}

// UnboundedSequence creates a sequence with no element count.
func UnboundedSequence(elem Layout) (*Sequence, error) {
	if elem == nil {
		return nil, errors.Construction(errors.PhaseLayout, "sequence element is nil")
	}
	return &Sequence{elem: elem}, nil
}

// Element returns the element layout.
func (s *Sequence) Element() Layout { return s.elem }

// Count returns the element count and whether the sequence is bounded.
func (s *Sequence) Count() (uint64, bool) { return s.count, s.bounded }

func (s *Sequence) BitSize() (uint64, error) {
	if !s.bounded {
		return 0, errors.New(errors.PhaseLayout, errors.KindConstruction).
			Layout(s.String()).
			Detail("unbounded sequence has no size").
			Build()
	}
	elemSize, err := s.elem.BitSize()
	if err != nil {
		return 0, err
	}
	size, ok := mulBits(elemSize, s.count)
	if !ok {
		return 0, errors.Overflow(errors.PhaseLayout, "sequence size", elemSize, s.count)
	}
	return size, nil
}

func (s *Sequence) ByteSize() (uint64, error) { return byteSize(s) }
func (s *Sequence) HasSize() bool             { return s.bounded && s.elem.HasSize() }
func (s *Sequence) BitAlignment() uint64      { return bitAlignment(s) }
func (s *Sequence) ByteAlignment() uint64     { return bitAlignment(s) / 8 }
func (s *Sequence) IsPadding() bool           { return false }
func (s *Sequence) naturalAlignment() uint64  { return s.elem.BitAlignment() }

func (s *Sequence) redecorate(d decor) Layout {
	return &Sequence{decor: d, elem: s.elem, count: s.count, bounded: s.bounded}
}

// WithName returns a copy with the given name.
func (s *Sequence) WithName(name string) *Sequence {
	return s.redecorate(s.decor.withName(name)).(*Sequence)
}

// WithBitAlignment returns a copy with the given alignment override.
func (s *Sequence) WithBitAlignment(bits uint64) (*Sequence, error) {
	d, err := s.decor.withAlignment(bits)
	if err != nil {
		return nil, err
	}
	return s.redecorate(d).(*Sequence), nil
}

// WithCount returns a bounded copy with the given count.
func (s *Sequence) WithCount(count uint64) (*Sequence, error) {
	seq, err := SequenceLayout(count, s.elem)
	if err != nil {
		return nil, err
	}
	seq.decor = s.decor
	return seq, nil
}

// Flatten collapses nested bounded sequences into one sequence whose element
// is the innermost non-sequence layout.
func (s *Sequence) Flatten() (*Sequence, error) {
	if !s.bounded {
		return nil, errors.Construction(errors.PhaseLayout, "cannot flatten an unbounded sequence")
	}
	count := s.count
	elem := s.elem
	for {
		inner, ok := elem.(*Sequence)
		if !ok {
			break
		}
		if !inner.bounded {
			return nil, errors.Construction(errors.PhaseLayout, "cannot flatten an unbounded sequence")
		}
		var fits bool
		if count, fits = mulBits(count, inner.count); !fits {
			return nil, errors.Overflow(errors.PhaseLayout, "flattened count", count, inner.count)
		}
		elem = inner.elem
	}
	return SequenceLayout(count, elem)
}

// Reshape re-partitions the flattened sequence into nested sequences with the
// given dimensions, outermost first. At most one dimension may be -1, in which
// case it is inferred.
func (s *Sequence) Reshape(dims ...int64) (*Sequence, error) {
	if len(dims) == 0 {
		return nil, errors.Construction(errors.PhaseLayout, "reshape requires at least one dimension")
	}
	flat, err := s.Flatten()
	if err != nil {
		return nil, err
	}

	inferred := -1
	product := uint64(1)
	for i, d := range dims {
		switch {
		case d == -1:
			if inferred >= 0 {
				return nil, errors.Construction(errors.PhaseLayout, "at most one dimension may be inferred")
			}
			inferred = i
		case d <= 0:
			return nil, errors.Construction(errors.PhaseLayout, "invalid dimension %d", d)
		default:
			product *= uint64(d)
		}
	}

	resolved := make([]uint64, len(dims))
	for i, d := range dims {
		resolved[i] = uint64(d)
	}
	if inferred >= 0 {
		if product == 0 || flat.count%product != 0 {
			return nil, errors.Construction(errors.PhaseLayout,
				"cannot infer dimension: %d elements not divisible by %d", flat.count, product)
		}
		resolved[inferred] = flat.count / product
	} else if product != flat.count {
		return nil, errors.Construction(errors.PhaseLayout,
			"dimensions multiply to %d, sequence has %d elements", product, flat.count)
	}

	var result Layout = flat.elem
	for i := len(resolved) - 1; i >= 0; i-- {
		if result, err = SequenceLayout(resolved[i], result); err != nil {
			return nil, err
		}
	}
	return result.(*Sequence), nil
}

func (s *Sequence) Equal(other Layout) bool {
	o, ok := other.(*Sequence)
	if !ok || !equalDecor(s, o) {
		return false
	}
	return s.bounded == o.bounded && s.count == o.count && s.elem.Equal(o.elem)
}

func (s *Sequence) String() string {
	if !s.bounded {
		return decorate(s, fmt.Sprintf("[:%s]", s.elem))
	}
	return decorate(s, fmt.Sprintf("[%d:%s]", s.count, s.elem))
}

func (s *Sequence) BitOffset(path ...PathElement) (uint64, error) { return bitOffset(s, path) }
func (s *Sequence) ByteOffset(path ...PathElement) (uint64, error) {
	return byteOffset(s, path)
}
func (s *Sequence) Select(path ...PathElement) (Layout, error) { return selectPath(s, path) }
func (s *Sequence) Map(fn func(Layout) (Layout, error), path ...PathElement) (Layout, error) {
	return mapPath(s, fn, path)
}
func (s *Sequence) Plan(path ...PathElement) (AccessPlan, error) { return plan(s, path) }
