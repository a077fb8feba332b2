package layout

import (
	"strings"

	"github.com/wippyai/memseg/errors"
)

// GroupKind distinguishes structs from unions.
type GroupKind uint8

const (
	KindStruct GroupKind = iota
	KindUnion
)

func (k GroupKind) String() string {
	if k == KindUnion {
		return "union"
	}
	return "struct"
}

// Group is a struct or union of member layouts. Struct members are laid out
// back to back with no implicit padding; union members all start at offset 0.
type Group struct {
	decor
	members []Layout
	kind    GroupKind
}

// StructLayout creates a struct of the given members.
func StructLayout(members ...Layout) (*Group, error) {
	return newGroup(KindStruct, members)
}

// UnionLayout creates a union of the given members.
func UnionLayout(members ...Layout) (*Group, error) {
	return newGroup(KindUnion, members)
}

// MustStruct is like StructLayout but panics on error.
func MustStruct(members ...Layout) *Group {
	g, err := StructLayout(members...)
	if err != nil {
		panic(err)
	}
	return g
}

// MustUnion is like UnionLayout but panics on error.
func MustUnion(members ...Layout) *Group {
	g, err := UnionLayout(members...)
	if err != nil {
		panic(err)
	}
	return g
}

func newGroup(kind GroupKind, members []Layout) (*Group, error) {
	for i, m := range members {
		if m == nil {
			return nil, errors.Construction(errors.PhaseLayout, "%s member %d is nil", kind, i)
		}
	}
	g := &Group{kind: kind, members: append([]Layout(nil), members...)}
	if g.HasSize() {
		if _, err := g.BitSize(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Kind reports whether the group is a struct or a union.
func (g *Group) Kind() GroupKind { return g.kind }

// IsStruct reports whether the group is a struct.
func (g *Group) IsStruct() bool { return g.kind == KindStruct }

// IsUnion reports whether the group is a union.
func (g *Group) IsUnion() bool { return g.kind == KindUnion }

// Members returns a copy of the member list.
func (g *Group) Members() []Layout {
	return append([]Layout(nil), g.members...)
}

func (g *Group) BitSize() (uint64, error) {
	var size uint64
	for _, m := range g.members {
		ms, err := m.BitSize()
		if err != nil {
			return 0, err
		}
		if g.kind == KindUnion {
			size = max(size, ms)
			continue
		}
		var ok bool
		if size, ok = addBits(size, ms); !ok {
			return 0, errors.Overflow(errors.PhaseLayout, "struct size", size, ms)
		}
	}
	return size, nil
}

func (g *Group) ByteSize() (uint64, error) { return byteSize(g) }

func (g *Group) HasSize() bool {
	for _, m := range g.members {
		if !m.HasSize() {
			return false
		}
	}
	return true
}

func (g *Group) BitAlignment() uint64  { return bitAlignment(g) }
func (g *Group) ByteAlignment() uint64 { return bitAlignment(g) / 8 }
func (g *Group) IsPadding() bool       { return false }

func (g *Group) naturalAlignment() uint64 {
	align := uint64(8)
	for _, m := range g.members {
		align = max(align, m.BitAlignment())
	}
	return align
}

func (g *Group) redecorate(d decor) Layout {
	return &Group{decor: d, members: g.members, kind: g.kind}
}

// WithName returns a copy with the given name.
func (g *Group) WithName(name string) *Group {
	return g.redecorate(g.decor.withName(name)).(*Group)
}

// WithBitAlignment returns a copy with the given alignment override.
func (g *Group) WithBitAlignment(bits uint64) (*Group, error) {
	d, err := g.decor.withAlignment(bits)
	if err != nil {
		return nil, err
	}
	return g.redecorate(d).(*Group), nil
}

// memberOffset returns the bit offset of member i.
func (g *Group) memberOffset(i int) (uint64, error) {
	if g.kind == KindUnion {
		return 0, nil
	}
	var off uint64
	for _, m := range g.members[:i] {
		ms, err := m.BitSize()
		if err != nil {
			return 0, err
		}
		var ok bool
		if off, ok = addBits(off, ms); !ok {
			return 0, errors.Overflow(errors.PhaseLayout, "member offset", off, ms)
		}
	}
	return off, nil
}

// member returns the first member with the given name. Members precede each
// other in offset order, so the first match has the lowest offset.
func (g *Group) member(name string) (int, bool) {
	for i, m := range g.members {
		if n, ok := m.Name(); ok && n == name {
			return i, true
		}
	}
	return -1, false
}

func (g *Group) withMember(i int, l Layout) *Group {
	members := append([]Layout(nil), g.members...)
	members[i] = l
	return &Group{decor: g.decor, members: members, kind: g.kind}
}

func (g *Group) Equal(other Layout) bool {
	o, ok := other.(*Group)
	if !ok || !equalDecor(g, o) {
		return false
	}
	if g.kind != o.kind || len(g.members) != len(o.members) {
		return false
	}
	for i := range g.members {
		if !g.members[i].Equal(o.members[i]) {
			return false
		}
	}
	return true
}

func (g *Group) String() string {
	sep := ""
	if g.kind == KindUnion {
		sep = "|"
	}
	parts := make([]string, len(g.members))
	for i, m := range g.members {
		parts[i] = m.String()
	}
	return decorate(g, "["+strings.Join(parts, sep)+"]")
}

func (g *Group) BitOffset(path ...PathElement) (uint64, error)  { return bitOffset(g, path) }
func (g *Group) ByteOffset(path ...PathElement) (uint64, error) { return byteOffset(g, path) }
func (g *Group) Select(path ...PathElement) (Layout, error)     { return selectPath(g, path) }
func (g *Group) Map(fn func(Layout) (Layout, error), path ...PathElement) (Layout, error) {
	return mapPath(g, fn, path)
}
func (g *Group) Plan(path ...PathElement) (AccessPlan, error) { return plan(g, path) }
