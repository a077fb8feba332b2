package memseg

// Memory is byte-addressed storage with bounds-checked little-endian access.
// Segments implement it; so do adapters over foreign memories.
type Memory interface {
	Read(offset uint64, length uint64) ([]byte, error)
	Write(offset uint64, data []byte) error
	ReadU8(offset uint64) (uint8, error)
	ReadU16(offset uint64) (uint16, error)
	ReadU32(offset uint64) (uint32, error)
	ReadU64(offset uint64) (uint64, error)
	WriteU8(offset uint64, value uint8) error
	WriteU16(offset uint64, value uint16) error
	WriteU32(offset uint64, value uint32) error
	WriteU64(offset uint64, value uint64) error
}

// MemorySizer provides the size of a Memory in bytes.
type MemorySizer interface {
	Size() uint64
}
