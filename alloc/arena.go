package alloc

import (
	"fmt"
	"math/bits"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

// Options configures an Arena.
type Options struct {
	// BlockSize is the minimum size of each native block.
	BlockSize uint64
	// Limit caps the total bytes of blocks the arena may map. Zero means
	// no limit.
	Limit uint64
}

// DefaultOptions returns 4 KiB blocks with no limit.
func DefaultOptions() Options {
	return Options{
		BlockSize: 4 << 10,
	}
}

// Arena is a bump allocator carving segments out of native blocks owned by
// its scope. Every block is freed when the scope closes. An Arena is not
// safe for concurrent use; wrap it with Synchronized.
type Arena struct {
	scope     *scope.Scope
	block     *segment.Segment
	opts      Options
	cursor    uint64
	allocated uint64
	reserved  uint64
	blocks    int
}

// NewArena creates an arena over sc.
func NewArena(sc *scope.Scope, opts Options) (*Arena, error) {
	if opts.BlockSize == 0 {
		return nil, errors.Construction(errors.PhaseAlloc, "block size must be positive")
	}
	if err := sc.CheckValidState(); err != nil {
		return nil, err
	}
	return &Arena{scope: sc, opts: opts}, nil
}

// Scope returns the scope owning the arena's blocks.
func (a *Arena) Scope() *scope.Scope { return a.scope }

// Allocated returns the bytes handed out so far.
func (a *Arena) Allocated() uint64 { return a.allocated }

// Reserved returns the bytes of all blocks mapped so far.
func (a *Arena) Reserved() uint64 { return a.reserved }

// Blocks returns the number of blocks mapped so far.
func (a *Arena) Blocks() int { return a.blocks }

// Allocate returns a segment of size bytes aligned to align. When the
// current block cannot fit the request, a new block of
// max(BlockSize, size+align-1) bytes becomes current.
func (a *Arena) Allocate(size, align uint64) (*segment.Segment, error) {
	if align == 0 || align&(align-1) != 0 {
		return nil, errors.Construction(errors.PhaseAlloc, "alignment %d is not a power of two", align)
	}
	if err := a.scope.CheckValidState(); err != nil {
		return nil, err
	}
	if seg, ok := a.bump(size, align); ok {
		return seg, nil
	}

	need, carry := bits.Add64(size, align-1, 0)
	if carry != 0 {
		return nil, errors.Overflow(errors.PhaseAlloc, "arena request", size, align)
	}
	blockSize := max(a.opts.BlockSize, need)
	if a.opts.Limit > 0 && a.reserved+blockSize > a.opts.Limit {
		// fall back to an exact-fit block before giving up
		blockSize = need
		if a.reserved+blockSize > a.opts.Limit {
			return nil, errors.Exhausted(errors.PhaseAlloc, size, align,
				fmt.Sprintf("arena limit %s reached", humanize.IBytes(a.opts.Limit)))
		}
	}

	block, err := segment.AllocateNative(blockSize, 1, a.scope)
	if err != nil {
		return nil, err
	}
	a.block, a.cursor = block, 0
	a.reserved += blockSize
	a.blocks++

	memseg.Logger().Debug("arena block mapped",
		zap.Uint64("scope", a.scope.ID()),
		zap.Uint64("block_size", blockSize),
		zap.Int("blocks", a.blocks))

	seg, ok := a.bump(size, align)
	if !ok {
		return nil, errors.Exhausted(errors.PhaseAlloc, size, align, "fresh block too small")
	}
	return seg, nil
}

func (a *Arena) bump(size, align uint64) (*segment.Segment, bool) {
	if a.block == nil {
		return nil, false
	}
	base := uint64(a.block.RawAddress())
	addr := (base + a.cursor + align - 1) &^ (align - 1)
	start := addr - base
	if start > a.block.Size() || size > a.block.Size()-start {
		return nil, false
	}
	seg, err := a.block.Slice(start, size)
	if err != nil {
		return nil, false
	}
	a.cursor = start + size
	a.allocated += size
	return seg, true
}

func (a *Arena) String() string {
	return fmt.Sprintf("Arena{%s allocated, %s reserved in %d blocks}",
		humanize.IBytes(a.allocated), humanize.IBytes(a.reserved), a.blocks)
}
