package wasmmem

import (
	"sync"

	"github.com/wippyai/memseg/errors"
	"github.com/wippyai/memseg/scope"
	"github.com/wippyai/memseg/segment"
)

// Handle identifies a segment lent to guest code. Zero is never a valid
// handle.
type Handle uint32

// Table lends host segments to guest code as i32 handles, the way the
// component model passes own and borrow resources. A lent segment's scope
// stays open until its handle is dropped or the table is closed.
type Table struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	seg         *segment.Segment
	pin         *scope.Handle
	borrowCount uint32
	valid       bool
}

func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Lend stores seg and returns its handle. The segment's scope cannot be
// closed while the handle is live.
func (t *Table) Lend(seg *segment.Segment) (Handle, error) {
	if seg == nil {
		return 0, errors.InvalidInput(errors.PhaseSegment, "nil segment")
	}
	pin, err := seg.Scope().Acquire()
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		pin.Release()
		return 0, errors.Lifetime(errors.PhaseSegment, "handle table closed")
	}

	e := entry{seg: seg, pin: pin, valid: true}
	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h, nil
	}
	t.entries = append(t.entries, e)
	return Handle(len(t.entries)), nil
}

func (t *Table) lookup(h Handle) (*entry, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[h-1]
	return e, e.valid
}

// Get returns the segment behind h.
func (t *Table) Get(h Handle) (*segment.Segment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	return e.seg, true
}

// Borrow records an outstanding borrow of h and returns its segment.
func (t *Table) Borrow(h Handle) (*segment.Segment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	e.borrowCount++
	return e.seg, true
}

// Return ends one borrow of h.
func (t *Table) Return(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.lookup(h)
	if !ok || e.borrowCount == 0 {
		return false
	}
	e.borrowCount--
	return true
}

// Drop removes h and unpins its segment's scope. Dropping a handle with
// outstanding borrows fails.
func (t *Table) Drop(h Handle) (*segment.Segment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.lookup(h)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseSegment, "unknown handle")
	}
	if e.borrowCount > 0 {
		return nil, errors.Dependency(errors.PhaseSegment, "cannot drop segment with outstanding borrows")
	}

	seg := e.seg
	e.pin.Release()
	*e = entry{}
	t.freeList = append(t.freeList, h)
	return seg, nil
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Close drops every handle regardless of borrows.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	for i := range t.entries {
		if t.entries[i].valid {
			t.entries[i].pin.Release()
		}
	}
	t.entries = nil
	t.freeList = nil
	return nil
}
