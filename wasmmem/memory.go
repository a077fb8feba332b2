package wasmmem

import (
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
)

var _ memseg.Memory = (*Wrapper)(nil)

// Wrap adapts a wazero memory to memseg.Memory.
func Wrap(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to the memseg.Memory interface. Guest
// memory is 32-bit addressed; larger offsets are out of bounds.
type Wrapper struct {
	Mem api.Memory
}

// Size returns the current size of the memory in bytes.
func (m *Wrapper) Size() uint64 { return uint64(m.Mem.Size()) }

func (m *Wrapper) outOfBounds(offset, length uint64) error {
	return errors.OutOfBounds(errors.PhaseSegment, offset, length, m.Size())
}

func guestOffset(offset uint64) (uint32, bool) {
	if offset > math.MaxUint32 {
		return 0, false
	}
	return uint32(offset), true
}

// Read copies bytes out of guest memory.
func (m *Wrapper) Read(offset, length uint64) ([]byte, error) {
	off, ok := guestOffset(offset)
	if !ok || length > math.MaxUint32 {
		return nil, m.outOfBounds(offset, length)
	}
	data, ok := m.Mem.Read(off, uint32(length))
	if !ok {
		return nil, m.outOfBounds(offset, length)
	}
	return append([]byte(nil), data...), nil
}

// Write writes bytes to guest memory.
func (m *Wrapper) Write(offset uint64, data []byte) error {
	off, ok := guestOffset(offset)
	if !ok || !m.Mem.Write(off, data) {
		return m.outOfBounds(offset, uint64(len(data)))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wrapper) ReadU8(offset uint64) (uint8, error) {
	off, ok := guestOffset(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 1)
	}
	v, ok := m.Mem.ReadByte(off)
	if !ok {
		return 0, m.outOfBounds(offset, 1)
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Wrapper) ReadU16(offset uint64) (uint16, error) {
	off, ok := guestOffset(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 2)
	}
	v, ok := m.Mem.ReadUint16Le(off)
	if !ok {
		return 0, m.outOfBounds(offset, 2)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(offset uint64) (uint32, error) {
	off, ok := guestOffset(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	v, ok := m.Mem.ReadUint32Le(off)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wrapper) ReadU64(offset uint64) (uint64, error) {
	off, ok := guestOffset(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	v, ok := m.Mem.ReadUint64Le(off)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wrapper) WriteU8(offset uint64, value uint8) error {
	off, ok := guestOffset(offset)
	if !ok || !m.Mem.WriteByte(off, value) {
		return m.outOfBounds(offset, 1)
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Wrapper) WriteU16(offset uint64, value uint16) error {
	off, ok := guestOffset(offset)
	if !ok || !m.Mem.WriteUint16Le(off, value) {
		return m.outOfBounds(offset, 2)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(offset uint64, value uint32) error {
	off, ok := guestOffset(offset)
	if !ok || !m.Mem.WriteUint32Le(off, value) {
		return m.outOfBounds(offset, 4)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wrapper) WriteU64(offset uint64, value uint64) error {
	off, ok := guestOffset(offset)
	if !ok || !m.Mem.WriteUint64Le(off, value) {
		return m.outOfBounds(offset, 8)
	}
	return nil
}
