package scope

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/petermattis/goid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/memseg"
	"github.com/wippyai/memseg/errors"
)

const (
	stateAlive int32 = iota
	stateClosing
	stateClosed
)

var nextID atomic.Uint64

// Scope governs the lifetime of segments and which goroutines may use them.
//
// A confined scope is owned by the goroutine that created it: every access,
// close and registration from another goroutine fails. A shared scope may be
// used from any goroutine. The global scope is shared and never closes.
type Scope struct {
	*state
}

type state struct {
	id       uint64
	owner    uint64 // 0 when shared
	global   bool
	implicit bool

	status     atomic.Int32
	dependents atomic.Int64
	inflight   atomic.Int64

	mu      sync.Mutex
	actions []func() error
}

func newState(owner uint64) *state {
	return &state{id: nextID.Inc(), owner: owner}
}

// NewConfined creates a scope owned by the calling goroutine.
func NewConfined() *Scope {
	return &Scope{state: newState(currentGoroutine())}
}

// NewShared creates a scope usable from any goroutine.
func NewShared() *Scope {
	return &Scope{state: newState(0)}
}

// NewImplicit creates a shared scope that is also closed once the returned
// handle becomes unreachable. Explicit Close still works; whichever comes
// first wins and the other is a no-op.
func NewImplicit() *Scope {
	st := newState(0)
	st.implicit = true
	s := &Scope{state: st}
	runtime.AddCleanup(s, (*state).reap, st)
	return s
}

var global = &Scope{state: &state{id: 0, global: true}}

// Global returns the scope that is always alive and cannot be closed.
func Global() *Scope {
	return global
}

// ID returns a process-unique identifier for the scope.
func (s *Scope) ID() uint64 { return s.id }

// Owner returns the owning goroutine id, or 0 for shared scopes.
func (s *Scope) Owner() uint64 { return s.owner }

// IsShared reports whether the scope may be used from any goroutine.
func (s *Scope) IsShared() bool { return s.owner == 0 }

// IsGlobal reports whether s is the global scope.
func (s *Scope) IsGlobal() bool { return s.global }

// IsImplicit reports whether the scope closes when it becomes unreachable.
func (s *Scope) IsImplicit() bool { return s.implicit }

// IsAlive reports whether the scope has not been closed.
func (s *Scope) IsAlive() bool {
	return s.status.Load() == stateAlive
}

// Dependents returns the number of outstanding dependents.
func (s *Scope) Dependents() int64 {
	return s.dependents.Load()
}

func (s *Scope) String() string {
	kind := "shared"
	switch {
	case s.global:
		kind = "global"
	case s.implicit:
		kind = "implicit"
	case s.owner != 0:
		kind = fmt.Sprintf("confined:%d", s.owner)
	}
	status := "alive"
	switch s.status.Load() {
	case stateClosing:
		status = "closing"
	case stateClosed:
		status = "closed"
	}
	return fmt.Sprintf("scope#%d{%s %s}", s.id, kind, status)
}

// currentGoroutine returns the calling goroutine's id, read from the runtime
// without a stack dump.
func currentGoroutine() uint64 {
	return uint64(goid.Get())
}

func (st *state) checkOwner() error {
	if st.owner == 0 {
		return nil
	}
	if caller := currentGoroutine(); caller != st.owner {
		return errors.Confinement(errors.PhaseScope, st.owner, caller)
	}
	return nil
}

// CheckValidState fails if the scope is closed or, for a confined scope, if
// the caller is not the owner.
func (s *Scope) CheckValidState() error {
	if !s.IsAlive() {
		return errors.Lifetime(errors.PhaseScope, "scope")
	}
	return s.checkOwner()
}

// Enter guards a single access. It must be paired with Exit when it
// succeeds. While a shared scope has an access in progress, Close fails.
func (s *Scope) Enter() error {
	if s.global {
		return nil
	}
	if s.owner != 0 {
		return s.CheckValidState()
	}
	s.inflight.Inc()
	if !s.IsAlive() {
		s.inflight.Dec()
		return errors.Lifetime(errors.PhaseScope, "scope")
	}
	return nil
}

// Exit ends an access started by Enter.
func (s *Scope) Exit() {
	if s.global || s.owner != 0 {
		return
	}
	s.inflight.Dec()
}

// AddCloseAction registers fn to run when the scope closes. Actions run in
// reverse registration order on the closing goroutine. Actions added to the
// global scope never run.
func (s *Scope) AddCloseAction(fn func() error) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseScope, "close action is nil")
	}
	if err := s.checkOwner(); err != nil {
		return err
	}
	if s.global {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.IsAlive() {
		return errors.Lifetime(errors.PhaseScope, "scope")
	}
	s.actions = append(s.actions, fn)
	return nil
}

// Handle is an outstanding dependency on a scope. While any handle is
// unreleased, the scope cannot be closed.
type Handle struct {
	scope    *Scope
	released atomic.Bool
}

// Scope returns the scope the handle pins.
func (h *Handle) Scope() *Scope { return h.scope }

// Release drops the dependency. Releasing twice is a no-op.
func (h *Handle) Release() {
	if h.scope.global {
		return
	}
	if h.released.CompareAndSwap(false, true) {
		h.scope.dependents.Dec()
	}
}

// Acquire pins the scope open until the returned handle is released. It may
// be called from any goroutine.
func (s *Scope) Acquire() (*Handle, error) {
	h := &Handle{scope: s}
	if s.global {
		return h, nil
	}
	s.dependents.Inc()
	if !s.IsAlive() {
		s.dependents.Dec()
		return nil, errors.Lifetime(errors.PhaseScope, "scope")
	}
	return h, nil
}

// KeepAlive prevents target from closing until s closes.
func (s *Scope) KeepAlive(target *Scope) error {
	if target == nil {
		return errors.InvalidInput(errors.PhaseScope, "target scope is nil")
	}
	if target.state == s.state {
		return errors.InvalidInput(errors.PhaseScope, "scope cannot keep itself alive")
	}
	if err := s.CheckValidState(); err != nil {
		return err
	}
	if err := target.CheckValidState(); err != nil {
		return err
	}
	h, err := target.Acquire()
	if err != nil {
		return err
	}
	if err := s.AddCloseAction(func() error {
		h.Release()
		return nil
	}); err != nil {
		h.Release()
		return err
	}
	return nil
}

// Close closes the scope and runs its close actions. It fails if the caller
// is not the owner, the scope is already closed, the scope is global, other
// scopes still depend on it, or an access on a shared scope is in progress.
// Errors returned by close actions are combined; the scope is closed
// regardless.
func (s *Scope) Close() error {
	if err := s.checkOwner(); err != nil {
		return err
	}
	if s.global {
		return errors.Dependency(errors.PhaseScope, "global scope cannot be closed")
	}
	return s.close()
}

func (st *state) close() error {
	if !st.status.CompareAndSwap(stateAlive, stateClosing) {
		return errors.Dependency(errors.PhaseScope, "scope already closed")
	}
	if n := st.dependents.Load(); n > 0 {
		st.status.Store(stateAlive)
		return errors.Dependency(errors.PhaseScope, fmt.Sprintf("scope has %d outstanding dependents", n))
	}
	if st.inflight.Load() > 0 {
		st.status.Store(stateAlive)
		return errors.Dependency(errors.PhaseScope, "concurrent access in progress")
	}
	st.status.Store(stateClosed)

	st.mu.Lock()
	actions := st.actions
	st.actions = nil
	st.mu.Unlock()

	var err error
	for _, fn := range slices.Backward(actions) {
		err = multierr.Append(err, fn())
	}
	if err != nil {
		memseg.Logger().Debug("scope close actions failed",
			zap.Uint64("scope", st.id),
			zap.Int("actions", len(actions)),
			zap.Error(err))
	}
	return err
}

// reap closes an implicit scope whose handle became unreachable.
func (st *state) reap() {
	if st.status.Load() == stateClosed {
		return
	}
	if err := st.close(); err != nil {
		memseg.Logger().Warn("implicit scope close failed",
			zap.Uint64("scope", st.id),
			zap.Error(err))
	}
}
