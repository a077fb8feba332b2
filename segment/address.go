package segment

import (
	"fmt"

	"github.com/wippyai/memseg/errors"
)

// RawAddress is a bare numeric address. It carries no bounds or lifetime and
// cannot be dereferenced; wrap it with OfAddress to access memory.
type RawAddress uintptr

// NULL is the zero address.
const NULL RawAddress = 0

// IsNull reports whether a is the zero address.
func (a RawAddress) IsNull() bool { return a == NULL }

// Add returns a advanced by n bytes.
func (a RawAddress) Add(n uint64) RawAddress { return a + RawAddress(n) }

func (a RawAddress) String() string {
	if a == NULL {
		return "NULL"
	}
	return fmt.Sprintf("0x%x", uintptr(a))
}

// Address is a checked address: a segment and a byte offset within it.
type Address struct {
	seg    *Segment
	offset uint64
}

// Segment returns the segment the address points into.
func (a Address) Segment() *Segment { return a.seg }

// Offset returns the byte offset within the segment.
func (a Address) Offset() uint64 { return a.offset }

// Add returns the address n bytes further on. The result may point one past
// the end of the segment but no further.
func (a Address) Add(n uint64) (Address, error) {
	off := a.offset + n
	if off < a.offset || off > a.seg.size {
		return Address{}, errors.OutOfBounds(errors.PhaseSegment, a.offset, n, a.seg.size)
	}
	return Address{seg: a.seg, offset: off}, nil
}

// ToRaw returns the numeric address.
func (a Address) ToRaw() RawAddress {
	return a.seg.RawAddress().Add(a.offset)
}

// Rest returns the segment from the address to the end of its segment.
func (a Address) Rest() (*Segment, error) {
	return a.seg.SliceFrom(a.offset)
}

func (a Address) String() string {
	return fmt.Sprintf("%s[%d]", a.seg.RawAddress(), a.offset)
}
