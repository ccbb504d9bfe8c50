package hypergraph

import "errors"

// Sentinel errors for the Store/Validator error taxonomy.
// All are recoverable: the store never leaves a partially-written file.
var (
	// ErrInvalidGraph wraps one or more fatal Validator errors; returned by
	// Save when the graph fails structural validation.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrUnknownID is returned when an operation references a claim or
	// implication id that does not exist.
	ErrUnknownID = errors.New("unknown id")

	// ErrDuplicateID is returned when add_claim/add_implication is given an
	// id already in use.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrConclusionAlreadyClaimed enforces invariant 3: a claim may be the
	// conclusion of at most one implication.
	ErrConclusionAlreadyClaimed = errors.New("conclusion already claimed by another implication")

	// ErrCycleDetected enforces invariant 6: the implication graph must be
	// acyclic.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrEvidenceMismatch is returned when simulation evidence code does not
	// byte-exactly match the cited lines of its source file.
	ErrEvidenceMismatch = errors.New("evidence code does not match cited source lines")
)
