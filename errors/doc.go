// Package errors provides structured error types for the memseg library.
//
// Errors are categorized by Phase (which subsystem raised it) and Kind (error
// category). Kinds map one-to-one onto the failure classes callers are expected
// to tell apart:
//
//	construction   invalid size, alignment or carrier, detected eagerly
//	out_of_bounds  offset/length outside a segment or path index outside a sequence
//	overflow       index × stride arithmetic overflow
//	lifetime       scope no longer alive
//	confinement    wrong goroutine touching a confined scope
//	alignment      address does not meet the tier an operation needs
//	exhausted      arena limit or system memory exhausted
//	dependency     close refused: dependents outstanding or already closed
//	read_only      write through a read-only segment
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLayout, errors.KindConstruction).
//		Path("points", "[2]", "x").
//		Layout("[5:b32]").
//		Detail("sequence index out of range").
//		Build()
//
// Use the kind sentinels with the standard library to classify failures:
//
//	if errors.Is(err, memerrors.ErrLifetime) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
