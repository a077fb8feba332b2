package segment

import (
	"os"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/scope"
)

// MapMode selects how a file is mapped.
type MapMode uint8

const (
	MapReadOnly  MapMode = iota // shared, read-only; the segment rejects writes
	MapReadWrite                // shared; writes reach the file
	MapPrivate                  // copy-on-write; writes stay in memory
)

func (m MapMode) String() string {
	switch m {
	case MapReadOnly:
		return "read-only"
	case MapReadWrite:
		return "read-write"
	case MapPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// mapping is the page-aligned region returned by mmap.
type mapping struct {
	data []byte
	path string
}

// pages returns the whole pages of the mapping that cover [base, base+size).
func (m *mapping) pages(base unsafe.Pointer, size uint64) []byte {
	start := uintptr(unsafe.Pointer(unsafe.SliceData(m.data)))
	page := uintptr(unix.Getpagesize())
	lo := (uintptr(base) - start) &^ (page - 1)
	hi := uintptr(base) - start + uintptr(size)
	return m.data[lo:hi]
}

// MapFile maps size bytes of the file at path, starting at offset, into a
// segment governed by sc. A size of zero maps through to the end of the file.
// With MapReadWrite the file is extended when it is shorter than
// offset+size. The mapping is removed when sc closes.
func MapFile(path string, offset, size uint64, mode MapMode, sc *scope.Scope) (*Segment, error) {
	if err := sc.CheckValidState(); err != nil {
		return nil, err
	}

	prot, flags, open := unix.PROT_READ, unix.MAP_SHARED, os.O_RDONLY
	switch mode {
	case MapReadOnly:
	case MapReadWrite:
		prot |= unix.PROT_WRITE
		open = os.O_RDWR
	case MapPrivate:
		prot |= unix.PROT_WRITE
		flags = unix.MAP_PRIVATE
	default:
		return nil, errors.InvalidInput(errors.PhaseMap, "unknown map mode")
	}

	f, err := os.OpenFile(path, open, 0)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMap, errors.KindInvalidInput, err, "cannot open "+path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMap, errors.KindInvalidInput, err, "cannot stat "+path)
	}
	fileSize := uint64(info.Size())

	if size == 0 {
		if offset > fileSize {
			return nil, errors.OutOfBounds(errors.PhaseMap, offset, 0, fileSize)
		}
		size = fileSize - offset
	}
	end := offset + size
	if end < offset {
		return nil, errors.Overflow(errors.PhaseMap, "mapping range", offset, size)
	}
	if end > fileSize {
		if mode != MapReadWrite {
			return nil, errors.OutOfBounds(errors.PhaseMap, offset, size, fileSize)
		}
		if err := f.Truncate(int64(end)); err != nil {
			return nil, errors.Wrap(errors.PhaseMap, errors.KindInvalidInput, err, "cannot extend "+path)
		}
	}

	seg := &Segment{size: size, scope: sc, kind: KindMapped, readOnly: mode == MapReadOnly}
	if size == 0 {
		return seg, nil
	}

	page := uint64(unix.Getpagesize())
	delta := offset % page
	length := delta + size
	if length > uint64(maxMapLen) {
		return nil, errors.Exhausted(errors.PhaseMap, size, page, "exceeds addressable memory")
	}

	data, err := unix.Mmap(int(f.Fd()), int64(offset-delta), int(length), prot, flags)
	if err != nil {
		return nil, errors.New(errors.PhaseMap, errors.KindExhausted).
			Cause(err).
			Detail("cannot map %d bytes of %s at offset %d", size, path, offset).
			Build()
	}
	if err := sc.AddCloseAction(func() error {
		memseg.Logger().Debug("unmapping file", zap.String("path", path), zap.Int("length", len(data)))
		return unix.Munmap(data)
	}); err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}

	memseg.Logger().Debug("mapped file",
		zap.String("path", path),
		zap.Uint64("offset", offset),
		zap.Uint64("size", size),
		zap.Stringer("mode", mode))

	seg.base = unsafe.Add(unsafe.Pointer(unsafe.SliceData(data)), delta)
	seg.mapping = &mapping{data: data, path: path}
	return seg, nil
}

// withPages runs fn over the pages backing s, inside the scope guard.
func (s *Segment) withPages(op string, fn func(pages []byte) error) error {
	if s.kind != KindMapped {
		return errors.Unsupported(errors.PhaseMap, op+" requires a mapped segment")
	}
	if err := s.scope.Enter(); err != nil {
		return err
	}
	defer s.scope.Exit()
	if s.mapping == nil || s.size == 0 {
		return nil
	}
	if err := fn(s.mapping.pages(s.base, s.size)); err != nil {
		return errors.Wrap(errors.PhaseMap, errors.KindUnsupported, err, op+" failed")
	}
	return nil
}

// Force writes modified pages of the segment back to the file.
func (s *Segment) Force() error {
	return s.withPages("force", func(p []byte) error {
		return unix.Msync(p, unix.MS_SYNC)
	})
}

// Load hints that the segment's pages will be needed soon.
func (s *Segment) Load() error {
	return s.withPages("load", func(p []byte) error {
		return unix.Madvise(p, unix.MADV_WILLNEED)
	})
}

// Unload hints that the segment's pages are no longer needed.
func (s *Segment) Unload() error {
	return s.withPages("unload", func(p []byte) error {
		return unix.Madvise(p, unix.MADV_DONTNEED)
	})
}

// IsLoaded reports whether every page of the segment is resident. The answer
// is a snapshot and may be stale by the time it is used.
func (s *Segment) IsLoaded() (bool, error) {
	loaded := true
	err := s.withPages("isLoaded", func(p []byte) error {
		page := unix.Getpagesize()
		vec := make([]byte, (len(p)+page-1)/page)
		_, _, errno := unix.Syscall(unix.SYS_MINCORE,
			uintptr(unsafe.Pointer(unsafe.SliceData(p))),
			uintptr(len(p)),
			uintptr(unsafe.Pointer(unsafe.SliceData(vec))))
		if errno != 0 {
			return errno
		}
		for _, v := range vec {
			if v&1 == 0 {
				loaded = false
				break
			}
		}
		return nil
	})
	return loaded, err
}
