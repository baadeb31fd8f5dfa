package vea

import "errors"

// Error taxonomy, matching the specification's §7 list for the allocator's
// share of it. Callers test ErrOutOfSpace/ErrCorrupt/ErrInvalid directly;
// everything else wraps one of these with fmt.Errorf("...: %w", ...).
var (
	// ErrOutOfSpace is the only Reserve failure; it never modifies state.
	ErrOutOfSpace = errors.New("vea: out of space")
	// ErrInvalid marks a bad request (zero-length reservation, a format
	// capacity that does not exceed the header blocks).
	ErrInvalid = errors.New("vea: invalid argument")
	// ErrCorrupt marks a detected overlap or failed verification in the
	// free indexes. Never self-repaired; propagates unchanged.
	ErrCorrupt = errors.New("vea: corrupt free index")
	// ErrNotFound marks a probe that found no matching extent.
	ErrNotFound = errors.New("vea: not found")
)
