package access

import "github.com/wippyai/memseg/layout"

// Byte-aligned handles in native order, for reading values at arbitrary
// offsets.
var (
	Byte             = mustOf(layout.CarrierByte, layout.NativeOrder(), 1)
	Bool             = mustOf(layout.CarrierBool, layout.NativeOrder(), 1)
	Char16Unaligned  = mustOf(layout.CarrierChar, layout.NativeOrder(), 1)
	Int16Unaligned   = mustOf(layout.CarrierShort, layout.NativeOrder(), 1)
	Int32Unaligned   = mustOf(layout.CarrierInt, layout.NativeOrder(), 1)
	Float32Unaligned = mustOf(layout.CarrierFloat, layout.NativeOrder(), 1)
	Int64Unaligned   = mustOf(layout.CarrierLong, layout.NativeOrder(), 1)
	Float64Unaligned = mustOf(layout.CarrierDouble, layout.NativeOrder(), 1)
	AddressUnaligned = mustOf(layout.CarrierAddress, layout.NativeOrder(), 1)
)

var unaligned = func() map[layout.ByteOrder]map[layout.Carrier]*Handle {
	m := make(map[layout.ByteOrder]map[layout.Carrier]*Handle, 2)
	for _, o := range []layout.ByteOrder{layout.LittleEndian, layout.BigEndian} {
		m[o] = make(map[layout.Carrier]*Handle)
		for c := layout.CarrierByte; c <= layout.CarrierAddress; c++ {
			m[o][c] = mustOf(c, o, 1)
		}
	}
	return m
}()

// Unaligned returns the byte-aligned handle for carrier in the given order,
// or nil for an unknown carrier.
func Unaligned(carrier layout.Carrier, order layout.ByteOrder) *Handle {
	return unaligned[order][carrier]
}
