package storage

import (
	"sort"

	"github.com/nmoreau/semidatalog/datalog"
)

// entry is one fact plus the bookkeeping the store needs per fact:
// its support count. Whether it is slated for removal this deletion
// epoch is given by which view holds it (Δ⁻), not by the entry.
type entry struct {
	fact  Fact
	count int
}

// patternKey identifies one registered bound-column pattern, one byte
// per position, e.g. the bytes {0, 2} for a probe that binds columns 0
// and 2.
func patternKey(positions []int) string {
	b := make([]byte, 0, len(positions))
	for _, p := range positions {
		b = append(b, byte(p))
	}
	return string(b)
}

// indexedSet is one view (S, Δ⁺ or Δ⁻) of a relation: a primary
// key->entry map plus zero or more secondary indices, each keyed by a
// bound-column pattern. Every secondary index is kept synchronized
// with the primary map on every add/remove.
type indexedSet struct {
	primary  map[string]*entry
	patterns map[string][]int            // patternKey -> positions
	byKey    map[string]map[string][]*entry // patternKey -> boundKey -> entries
}

func newIndexedSet() *indexedSet {
	return &indexedSet{
		primary:  make(map[string]*entry),
		patterns: make(map[string][]int),
		byKey:    make(map[string]map[string][]*entry),
	}
}

// registerPattern ensures an index exists for the given bound-column
// positions, backfilling it from every entry already present. A
// no-op if the pattern is already registered.
func (s *indexedSet) registerPattern(positions []int) {
	if len(positions) == 0 {
		return
	}
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	pk := patternKey(sorted)
	if _, ok := s.patterns[pk]; ok {
		return
	}
	s.patterns[pk] = sorted
	bucket := make(map[string][]*entry, len(s.primary))
	for _, e := range s.primary {
		bk := boundKey(e.fact.Terms, sorted)
		bucket[bk] = append(bucket[bk], e)
	}
	s.byKey[pk] = bucket
}

func (s *indexedSet) get(key string) (*entry, bool) {
	e, ok := s.primary[key]
	return e, ok
}

// add inserts a brand-new entry (the caller has already confirmed the
// key is absent) into the primary map and every secondary index.
func (s *indexedSet) add(e *entry) {
	s.primary[e.fact.key()] = e
	for pk, positions := range s.patterns {
		bk := boundKey(e.fact.Terms, positions)
		s.byKey[pk][bk] = append(s.byKey[pk][bk], e)
	}
}

// remove deletes the entry for key from the primary map and every
// secondary index.
func (s *indexedSet) remove(key string) {
	e, ok := s.primary[key]
	if !ok {
		return
	}
	delete(s.primary, key)
	for pk, positions := range s.patterns {
		bk := boundKey(e.fact.Terms, positions)
		bucket := s.byKey[pk][bk]
		for i, cand := range bucket {
			if cand == e {
				s.byKey[pk][bk] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
}

// probe returns every fact whose values at positions equal key. An
// empty positions slice degrades to a full scan. A registered pattern
// (registerPattern) is answered from its index; any other pattern is
// answered by filtering a full scan.
func (s *indexedSet) probe(positions []int, key []datalog.Term) []Fact {
	if len(positions) == 0 {
		return s.scan()
	}
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	pk := patternKey(sorted)
	// key was built in the caller's positions order, not sorted order;
	// reorder key to match sorted positions before encoding.
	reordered := make([]datalog.Term, len(sorted))
	for i, p := range sorted {
		for j, orig := range positions {
			if orig == p {
				reordered[i] = key[j]
				break
			}
		}
	}
	bk := encodeTerms(reordered)
	index, ok := s.byKey[pk]
	if !ok {
		var out []Fact
		for _, e := range s.primary {
			if boundKey(e.fact.Terms, sorted) == bk {
				out = append(out, e.fact)
			}
		}
		return out
	}
	bucket := index[bk]
	out := make([]Fact, 0, len(bucket))
	for _, e := range bucket {
		out = append(out, e.fact)
	}
	return out
}

// scan returns every fact in the set.
func (s *indexedSet) scan() []Fact {
	out := make([]Fact, 0, len(s.primary))
	for _, e := range s.primary {
		out = append(out, e.fact)
	}
	return out
}
