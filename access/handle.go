package access

import (
	"fmt"
	"math/bits"
	"slices"
	"sync"
	"unsafe"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/segment"
)

// Handle reads and writes one carrier at
// base + offset + Σ coords[i] × strides[i]. Handles are immutable and safe to
// share between goroutines.
type Handle struct {
	strides []uint64
	offset  uint64
	align   uint64
	carrier layout.Carrier
	order   layout.ByteOrder
}

// Of creates a handle with no offset and no free coordinates. alignBytes
// must be a power of two.
func Of(carrier layout.Carrier, order layout.ByteOrder, alignBytes uint64) (*Handle, error) {
	if !carrier.Valid() {
		return nil, errors.Construction(errors.PhaseAccess, "unknown carrier %d", carrier)
	}
	if alignBytes == 0 || alignBytes&(alignBytes-1) != 0 {
		return nil, errors.Construction(errors.PhaseAccess, "alignment %d is not a power of two", alignBytes)
	}
	return &Handle{carrier: carrier, order: order, align: alignBytes}, nil
}

func mustOf(carrier layout.Carrier, order layout.ByteOrder, alignBytes uint64) *Handle {
	h, err := Of(carrier, order, alignBytes)
	if err != nil {
		panic(err)
	}
	return h
}

var valueHandles sync.Map // *layout.Value -> *Handle

// ForLayout derives a handle for the value layout selected by path. Each
// free dimension in the path becomes one coordinate, outermost first.
func ForLayout(l layout.Layout, path ...layout.PathElement) (*Handle, error) {
	v, isValue := l.(*layout.Value)
	if isValue && len(path) == 0 {
		if h, ok := valueHandles.Load(v); ok {
			return h.(*Handle), nil
		}
	}
	plan, err := l.Plan(path...)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		strides: plan.Strides,
		offset:  plan.OffsetBytes,
		align:   plan.AlignBytes,
		carrier: plan.Carrier,
		order:   plan.Order,
	}
	if isValue && len(path) == 0 {
		actual, _ := valueHandles.LoadOrStore(v, h)
		return actual.(*Handle), nil
	}
	return h, nil
}

// WithOffset returns a handle whose static offset is k bytes further on.
// k must be a multiple of the handle's alignment.
func (h *Handle) WithOffset(k uint64) (*Handle, error) {
	if k%h.align != 0 {
		return nil, errors.Construction(errors.PhaseAccess, "offset %d is not a multiple of alignment %d", k, h.align)
	}
	off, carry := bits.Add64(h.offset, k, 0)
	if carry != 0 {
		return nil, errors.Overflow(errors.PhaseAccess, "handle offset", h.offset, k)
	}
	out := *h
	out.offset = off
	return &out, nil
}

// WithStride returns a handle with one more coordinate, prepended, that
// advances stride bytes per unit. stride must be a multiple of the handle's
// alignment.
func (h *Handle) WithStride(stride uint64) (*Handle, error) {
	if stride%h.align != 0 {
		return nil, errors.Construction(errors.PhaseAccess, "stride %d is not a multiple of alignment %d", stride, h.align)
	}
	out := *h
	out.strides = append([]uint64{stride}, h.strides...)
	return &out, nil
}

// Coordinates returns how many coordinates each access takes.
func (h *Handle) Coordinates() int { return len(h.strides) }

func (h *Handle) Carrier() layout.Carrier { return h.carrier }
func (h *Handle) Order() layout.ByteOrder { return h.order }
func (h *Handle) Alignment() uint64       { return h.align }
func (h *Handle) Offset() uint64          { return h.offset }
func (h *Handle) Strides() []uint64       { return slices.Clone(h.strides) }

func (h *Handle) String() string {
	return fmt.Sprintf("Handle{%s %s align=%d offset=%d strides=%v}",
		h.carrier, h.order, h.align, h.offset, h.strides)
}

// resolve computes the byte offset for coords. Arithmetic overflow is a
// bounds error: no segment can be that large.
func (h *Handle) resolve(extra uint64, coords []uint64) (uint64, error) {
	if len(coords) != len(h.strides) {
		return 0, errors.New(errors.PhaseAccess, errors.KindInvalidInput).
			Detail("handle takes %d coordinates, got %d", len(h.strides), len(coords)).
			Build()
	}
	off, carry := bits.Add64(h.offset, extra, 0)
	if carry != 0 {
		return 0, overflow(h.offset, extra)
	}
	for i, c := range coords {
		hi, d := bits.Mul64(c, h.strides[i])
		if hi != 0 {
			return 0, overflow(c, h.strides[i])
		}
		if off, carry = bits.Add64(off, d, 0); carry != 0 {
			return 0, overflow(off, d)
		}
	}
	return off, nil
}

func overflow(a, b uint64) error {
	return errors.New(errors.PhaseAccess, errors.KindOutOfBounds).
		Detail("address arithmetic overflows: %d, %d", a, b).
		Build()
}

// tier classifies an address for the operations it permits.
type tier uint8

const (
	tierMisaligned tier = iota // nothing
	tierPartial                // plain get and set
	tierAligned                // everything
)

func (t tier) String() string {
	switch t {
	case tierAligned:
		return "atomic access"
	case tierPartial:
		return "access"
	default:
		return "misaligned"
	}
}

func (h *Handle) tier(addr uintptr) tier {
	a := uint64(addr)
	if a%h.align != 0 {
		return tierMisaligned
	}
	if a%max(h.align, h.carrier.ByteSize()) != 0 {
		return tierPartial
	}
	return tierAligned
}

// deref resolves the address and runs fn over the carrier's bytes once the
// segment's checks pass and the address meets need.
func (h *Handle) deref(seg *segment.Segment, extra uint64, coords []uint64, write bool, need tier, fn func(b []byte)) error {
	off, err := h.resolve(extra, coords)
	if err != nil {
		return err
	}
	var alignErr error
	err = seg.Deref(off, h.carrier.ByteSize(), write, func(b []byte) {
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
		if h.tier(addr) < need {
			alignErr = errors.Misaligned(errors.PhaseAccess, uint64(addr), h.requiredAlign(need), need.String())
			return
		}
		fn(b)
	})
	if err != nil {
		return err
	}
	return alignErr
}

func (h *Handle) requiredAlign(need tier) uint64 {
	if need == tierAligned {
		return max(h.align, h.carrier.ByteSize())
	}
	return h.align
}
