package witlayout

import (
	"fmt"
	"strconv"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
)

// Guest values are little-endian regardless of the host.
var (
	u8  = layout.MustValue(8, layout.CarrierByte, layout.LittleEndian)
	b8  = layout.MustValue(8, layout.CarrierBool, layout.LittleEndian)
	u16 = layout.MustValue(16, layout.CarrierShort, layout.LittleEndian)
	u32 = layout.MustValue(32, layout.CarrierInt, layout.LittleEndian)
	u64 = layout.MustValue(64, layout.CarrierLong, layout.LittleEndian)
	f32 = layout.MustValue(32, layout.CarrierFloat, layout.LittleEndian)
	f64 = layout.MustValue(64, layout.CarrierDouble, layout.LittleEndian)

	// ptrLen is the in-memory representation of strings and lists.
	ptrLen = layout.MustStruct(u32.WithName("ptr"), u32.WithName("len"))
)

// Calculator computes canonical ABI layouts for WIT types. Results for type
// definitions are cached. A Calculator is not safe for concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]layout.Layout
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]layout.Layout),
	}
}

// Layout returns the layout of t as stored in linear memory.
func (c *Calculator) Layout(t wit.Type) (layout.Layout, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return b8, nil
	case wit.U8, wit.S8:
		return u8, nil
	case wit.U16, wit.S16:
		return u16, nil
	case wit.U32, wit.S32:
		return u32, nil
	case wit.Char:
		return layout.WithAttribute(u32, "wit", "char"), nil
	case wit.U64, wit.S64:
		return u64, nil
	case wit.F32:
		return f32, nil
	case wit.F64:
		return f64, nil
	case wit.String:
		return ptrLen, nil
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return nil, errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("no canonical layout for WIT type %T", t))
	}
}

func (c *Calculator) typeDef(t *wit.TypeDef) (layout.Layout, error) {
	if cached, ok := c.cache[t]; ok {
		return cached, nil
	}

	var l layout.Layout
	var err error

	switch kind := t.Kind.(type) {
	case *wit.Record:
		l, err = c.record(kind)
	case *wit.Variant:
		cases := make([]variantCase, len(kind.Cases))
		for i, cs := range kind.Cases {
			cases[i] = variantCase{name: cs.Name, typ: cs.Type}
		}
		l, err = c.variant(cases)
	case *wit.Enum:
		l = discriminant(len(kind.Cases))
	case *wit.List:
		l = ptrLen
	case *wit.Option:
		l, err = c.variant([]variantCase{{name: "none"}, {name: "some", typ: kind.Type}})
	case *wit.Result:
		l, err = c.variant([]variantCase{{name: "ok", typ: kind.OK}, {name: "error", typ: kind.Err}})
	case *wit.Tuple:
		l, err = c.tuple(kind)
	case *wit.Flags:
		l, err = flags(len(kind.Flags))
	case *wit.Own, *wit.Borrow:
		l = u32
	case wit.Type:
		l, err = c.Layout(kind)
	default:
		err = errors.Unsupported(errors.PhaseLayout, fmt.Sprintf("no canonical layout for WIT type kind %T", kind))
	}
	if err != nil {
		return nil, err
	}

	c.cache[t] = l
	return l, nil
}

// structBuilder lays members out in order, inserting the padding the
// canonical ABI implies.
type structBuilder struct {
	members []layout.Layout
	offset  uint64
	align   uint64
}

func (b *structBuilder) add(name string, l layout.Layout) error {
	size, err := l.ByteSize()
	if err != nil {
		return err
	}
	if err := b.pad(l.ByteAlignment()); err != nil {
		return err
	}
	b.members = append(b.members, layout.Named(l, name))
	b.offset += size
	return nil
}

func (b *structBuilder) pad(align uint64) error {
	b.align = max(b.align, align)
	aligned := alignTo(b.offset, align)
	if aligned == b.offset {
		return nil
	}
	p, err := layout.PaddingLayout((aligned - b.offset) * 8)
	if err != nil {
		return err
	}
	b.members = append(b.members, p)
	b.offset = aligned
	return nil
}

func (b *structBuilder) build() (layout.Layout, error) {
	if err := b.pad(max(b.align, 1)); err != nil {
		return nil, err
	}
	return layout.StructLayout(b.members...)
}

func alignTo(offset, align uint64) uint64 {
	return (offset + align - 1) &^ (align - 1)
}

func (c *Calculator) record(r *wit.Record) (layout.Layout, error) {
	var b structBuilder
	for _, field := range r.Fields {
		fl, err := c.Layout(field.Type)
		if err != nil {
			return nil, err
		}
		if err := b.add(field.Name, fl); err != nil {
			return nil, err
		}
	}
	return b.build()
}

func (c *Calculator) tuple(t *wit.Tuple) (layout.Layout, error) {
	var b structBuilder
	for i, typ := range t.Types {
		el, err := c.Layout(typ)
		if err != nil {
			return nil, err
		}
		if err := b.add(strconv.Itoa(i), el); err != nil {
			return nil, err
		}
	}
	return b.build()
}

type variantCase struct {
	name string
	typ  wit.Type
}

// variant lays out [tag, padding, payload union, padding]. Cases without a
// payload contribute nothing to the union.
func (c *Calculator) variant(cases []variantCase) (layout.Layout, error) {
	if len(cases) == 0 {
		return layout.StructLayout()
	}
	var payloads []layout.Layout
	for _, cs := range cases {
		if cs.typ == nil {
			continue
		}
		pl, err := c.Layout(cs.typ)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, layout.Named(pl, cs.name))
	}

	var b structBuilder
	if err := b.add("tag", discriminant(len(cases))); err != nil {
		return nil, err
	}
	if len(payloads) > 0 {
		union, err := layout.UnionLayout(payloads...)
		if err != nil {
			return nil, err
		}
		if err := b.add("payload", union); err != nil {
			return nil, err
		}
	}
	return b.build()
}

func discriminant(numCases int) *layout.Value {
	switch {
	case numCases <= 1<<8:
		return u8
	case numCases <= 1<<16:
		return u16
	default:
		return u32
	}
}

// flags packs up to 32 flags into one integer and more into a sequence of
// u32 words.
func flags(n int) (layout.Layout, error) {
	switch {
	case n == 0:
		return layout.StructLayout()
	case n <= 8:
		return u8, nil
	case n <= 16:
		return u16, nil
	case n <= 32:
		return u32, nil
	default:
		return layout.SequenceLayout(uint64((n+31)/32), u32)
	}
}
