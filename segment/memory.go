package segment

import "encoding/binary"

// Read copies length bytes starting at offset.
func (s *Segment) Read(offset, length uint64) ([]byte, error) {
	out := make([]byte, length)
	if err := s.Deref(offset, length, false, func(b []byte) { copy(out, b) }); err != nil {
		return nil, err
	}
	return out, nil
}

// Write copies data to the segment starting at offset.
func (s *Segment) Write(offset uint64, data []byte) error {
	return s.Deref(offset, uint64(len(data)), true, func(b []byte) { copy(b, data) })
}

func (s *Segment) ReadU8(offset uint64) (uint8, error) {
	var v uint8
	err := s.Deref(offset, 1, false, func(b []byte) { v = b[0] })
	return v, err
}

func (s *Segment) ReadU16(offset uint64) (uint16, error) {
	var v uint16
	err := s.Deref(offset, 2, false, func(b []byte) { v = binary.LittleEndian.Uint16(b) })
	return v, err
}

func (s *Segment) ReadU32(offset uint64) (uint32, error) {
	var v uint32
	err := s.Deref(offset, 4, false, func(b []byte) { v = binary.LittleEndian.Uint32(b) })
	return v, err
}

func (s *Segment) ReadU64(offset uint64) (uint64, error) {
	var v uint64
	err := s.Deref(offset, 8, false, func(b []byte) { v = binary.LittleEndian.Uint64(b) })
	return v, err
}

func (s *Segment) WriteU8(offset uint64, value uint8) error {
	return s.Deref(offset, 1, true, func(b []byte) { b[0] = value })
}

func (s *Segment) WriteU16(offset uint64, value uint16) error {
	return s.Deref(offset, 2, true, func(b []byte) { binary.LittleEndian.PutUint16(b, value) })
}

func (s *Segment) WriteU32(offset uint64, value uint32) error {
	return s.Deref(offset, 4, true, func(b []byte) { binary.LittleEndian.PutUint32(b, value) })
}

func (s *Segment) WriteU64(offset uint64, value uint64) error {
	return s.Deref(offset, 8, true, func(b []byte) { binary.LittleEndian.PutUint64(b, value) })
}
