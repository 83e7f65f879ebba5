// Package storage is the indexed relation store: it holds every
// relation's stable set S plus its in-flight Δ⁺/Δ⁻ views, keeps
// per-fact support counts, and maintains one index per bound-column
// pattern the compiled plans and registered queries actually probe.
// It has no on-disk component; persistent storage is out of scope, so
// this is a plain in-memory structure, an arity-indexed relation
// index rather than an EAVT datom index.
package storage

import (
	"encoding/binary"

	"github.com/nmoreau/semidatalog/datalog"
)

// Fact is a ground tuple belonging to one relation (the relation
// symbol itself lives on the owning Relation, not on the Fact, since
// every Fact in an index already belongs to exactly one relation).
type Fact struct {
	Terms []datalog.Term
}

// key returns a canonical, comparable encoding of the full tuple, used
// as the primary index key.
func (f Fact) key() string {
	return encodeTerms(f.Terms)
}

// encodeTerms packs a term sequence into a byte string ordered by term
// id, suitable as a map key.
func encodeTerms(terms []datalog.Term) string {
	buf := make([]byte, len(terms)*4)
	for i, t := range terms {
		binary.BigEndian.PutUint32(buf[i*4:], t.ID())
	}
	return string(buf)
}

// boundKey packs the terms found at positions, in the order given, so
// the same positions always yield the same key regardless of the
// tuple's other columns.
func boundKey(terms []datalog.Term, positions []int) string {
	buf := make([]byte, len(positions)*4)
	for i, p := range positions {
		binary.BigEndian.PutUint32(buf[i*4:], terms[p].ID())
	}
	return string(buf)
}
