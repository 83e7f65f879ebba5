// Package errs defines the sentinel error kinds returned across the
// engine. Call sites wrap these with fmt.Errorf("...: %w", ...) to
// attach context rather than a bespoke Error struct hierarchy.
package errs

import "errors"

var (
	// ErrProgramInvalid is returned by New for non-range-restricted
	// rules, arity mismatches within the program, or unstratifiable
	// negation.
	ErrProgramInvalid = errors.New("program invalid")

	// ErrUnknownRelation is returned by Insert, Remove, Contains and
	// Query when the named relation does not appear in the program.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrArityMismatch is returned by Insert/Contains when a tuple's
	// length differs from its relation's declared arity.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrInvalidRemoval is returned by Remove against an intensional
	// relation: deletions are only accepted on extensional relations.
	ErrInvalidRemoval = errors.New("cannot remove from an intensional relation")

	// ErrInvalidInsert is returned by Insert against an intensional
	// relation: only the rules that derive it may populate it.
	ErrInvalidInsert = errors.New("cannot insert into an intensional relation")

	// ErrCorruptSupportCount signals a decrement of an already-zero
	// support count, i.e. bookkeeping corruption. It is never expected
	// to surface in correct operation; treat it as fatal.
	ErrCorruptSupportCount = errors.New("support count corrupted: decremented below zero")
)
