package layout

import (
	"encoding/binary"
	"unsafe"
)

// Carrier is the primitive kind a Value layout is read and written as.
type Carrier uint8

const (
	CarrierByte Carrier = iota + 1
	CarrierBool
	CarrierChar
	CarrierShort
	CarrierInt
	CarrierFloat
	CarrierLong
	CarrierDouble
	CarrierAddress
)

// AddressBits is the width of a native pointer.
const AddressBits = uint64(unsafe.Sizeof(uintptr(0))) * 8

// BitSize returns the carrier's width in bits, 0 for an unknown carrier.
func (c Carrier) BitSize() uint64 {
	switch c {
	case CarrierByte, CarrierBool:
		return 8
	case CarrierChar, CarrierShort:
		return 16
	case CarrierInt, CarrierFloat:
		return 32
	case CarrierLong, CarrierDouble:
		return 64
	case CarrierAddress:
		return AddressBits
	}
	return 0
}

// ByteSize returns the carrier's width in bytes.
func (c Carrier) ByteSize() uint64 {
	return c.BitSize() / 8
}

// IsFloat reports whether the carrier is a floating point kind.
func (c Carrier) IsFloat() bool {
	return c == CarrierFloat || c == CarrierDouble
}

// IsSigned reports whether integer values of the carrier sign-extend.
func (c Carrier) IsSigned() bool {
	switch c {
	case CarrierByte, CarrierShort, CarrierInt, CarrierLong:
		return true
	}
	return false
}

// Valid reports whether c is one of the defined carriers.
func (c Carrier) Valid() bool {
	return c >= CarrierByte && c <= CarrierAddress
}

func (c Carrier) String() string {
	switch c {
	case CarrierByte:
		return "byte"
	case CarrierBool:
		return "bool"
	case CarrierChar:
		return "char"
	case CarrierShort:
		return "short"
	case CarrierInt:
		return "int"
	case CarrierFloat:
		return "float"
	case CarrierLong:
		return "long"
	case CarrierDouble:
		return "double"
	case CarrierAddress:
		return "address"
	}
	return "unknown"
}

// ByteOrder selects how multi-byte values are laid out.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

var nativeOrder = func() ByteOrder {
	x := uint16(1)
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// NativeOrder returns the byte order of the host.
func NativeOrder() ByteOrder {
	return nativeOrder
}

// IsNative reports whether o matches the host byte order.
func (o ByteOrder) IsNative() bool {
	return o == nativeOrder
}

// Binary returns the encoding/binary order for o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}
