package layout

import (
	"fmt"

	"github.com/wippyai/memseg/errors"
)

// Value is a layout for a primitive read and written through a Carrier.
type Value struct {
	decor
	bits    uint64
	carrier Carrier
	order   ByteOrder
}

// ValueLayout creates a value layout. bits must match the carrier width.
func ValueLayout(bits uint64, carrier Carrier, order ByteOrder) (*Value, error) {
	if !carrier.Valid() {
		return nil, errors.Construction(errors.PhaseLayout, "unknown carrier %d", carrier)
	}
	if bits != carrier.BitSize() {
		return nil, errors.Construction(errors.PhaseLayout,
			"carrier %s requires %d bits, got %d", carrier, carrier.BitSize(), bits)
	}
	if order != LittleEndian && order != BigEndian {
		return nil, errors.Construction(errors.PhaseLayout, "unknown byte order %d", order)
	}
	return &Value{bits: bits, carrier: carrier, order: order}, nil
}

// MustValue is like ValueLayout but panics on error.
func MustValue(bits uint64, carrier Carrier, order ByteOrder) *Value {
	v, err := ValueLayout(bits, carrier, order)
	if err != nil {
		panic(err)
	}
	return v
}

// OfCarrier returns a value layout of the carrier's natural width.
func OfCarrier(carrier Carrier, order ByteOrder) (*Value, error) {
	return ValueLayout(carrier.BitSize(), carrier, order)
}

// Native-order value layouts for each carrier.
var (
	Int8    = MustValue(8, CarrierByte, nativeOrder)
	Bool    = MustValue(8, CarrierBool, nativeOrder)
	Char16  = MustValue(16, CarrierChar, nativeOrder)
	Int16   = MustValue(16, CarrierShort, nativeOrder)
	Int32   = MustValue(32, CarrierInt, nativeOrder)
	Float32 = MustValue(32, CarrierFloat, nativeOrder)
	Int64   = MustValue(64, CarrierLong, nativeOrder)
	Float64 = MustValue(64, CarrierDouble, nativeOrder)
	Address = MustValue(AddressBits, CarrierAddress, nativeOrder)
)

func (v *Value) Carrier() Carrier          { return v.carrier }
func (v *Value) Order() ByteOrder          { return v.order }
func (v *Value) BitSize() (uint64, error)  { return v.bits, nil }
func (v *Value) ByteSize() (uint64, error) { return byteSize(v) }
func (v *Value) HasSize() bool             { return true }
func (v *Value) BitAlignment() uint64      { return bitAlignment(v) }
func (v *Value) ByteAlignment() uint64     { return bitAlignment(v) / 8 }
func (v *Value) IsPadding() bool           { return false }
func (v *Value) naturalAlignment() uint64  { return v.bits }

func (v *Value) redecorate(d decor) Layout {
	return &Value{decor: d, bits: v.bits, carrier: v.carrier, order: v.order}
}

// WithName returns a copy with the given name.
func (v *Value) WithName(name string) *Value {
	return v.redecorate(v.decor.withName(name)).(*Value)
}

// WithBitAlignment returns a copy with the given alignment override.
func (v *Value) WithBitAlignment(bits uint64) (*Value, error) {
	d, err := v.decor.withAlignment(bits)
	if err != nil {
		return nil, err
	}
	return v.redecorate(d).(*Value), nil
}

// WithOrder returns a copy using the given byte order.
func (v *Value) WithOrder(order ByteOrder) *Value {
	return &Value{decor: v.decor, bits: v.bits, carrier: v.carrier, order: order}
}

// WithAttribute returns a copy with key set to value.
func (v *Value) WithAttribute(key, value string) *Value {
	return v.redecorate(v.decor.withAttribute(key, value)).(*Value)
}

func (v *Value) Equal(other Layout) bool {
	o, ok := other.(*Value)
	if !ok || !equalDecor(v, o) {
		return false
	}
	return v.order == o.order && v.carrier == o.carrier
}

func (v *Value) String() string {
	prefix := "b"
	if v.order == BigEndian {
		prefix = "B"
	}
	return decorate(v, fmt.Sprintf("%s%d", prefix, v.bits))
}

func (v *Value) BitOffset(path ...PathElement) (uint64, error)  { return bitOffset(v, path) }
func (v *Value) ByteOffset(path ...PathElement) (uint64, error) { return byteOffset(v, path) }
func (v *Value) Select(path ...PathElement) (Layout, error)     { return selectPath(v, path) }
func (v *Value) Map(fn func(Layout) (Layout, error), path ...PathElement) (Layout, error) {
	return mapPath(v, fn, path)
}
func (v *Value) Plan(path ...PathElement) (AccessPlan, error) { return plan(v, path) }
