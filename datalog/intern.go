package datalog

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
)

// Interner is the append-only Term universe shared by a single
// runtime. It is safe for concurrent use: Lookup takes the fast,
// lock-free-ish read path (RLock), Intern takes the slow path only
// the first time a given Value is seen (Lock).
//
// Ids are assigned densely starting at 1 (0 is reserved, see
// invalidTermID) so term ids can double as slice indices.
type Interner struct {
	mu     sync.RWMutex
	byKey  map[string]Term
	values []Value // values[id-1] is the Value for Term{id}
}

// NewInterner creates an empty, ready-to-use interner.
func NewInterner() *Interner {
	return &Interner{
		byKey: make(map[string]Term),
	}
}

// Intern returns the Term for v, assigning it a fresh id the first
// time v is seen. The interner never forgets or reuses an id: it is
// append-only for the life of the runtime, per spec.
func (in *Interner) Intern(v Value) Term {
	key := encodeKey(v)

	in.mu.RLock()
	if t, ok := in.byKey[key]; ok {
		in.mu.RUnlock()
		return t
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.byKey[key]; ok {
		return t
	}
	in.values = append(in.values, v)
	t := Term{id: uint32(len(in.values))}
	in.byKey[key] = t
	return t
}

// InternTuple interns every element of vs, in order.
func (in *Interner) InternTuple(vs ...Value) []Term {
	terms := make([]Term, len(vs))
	for i, v := range vs {
		terms[i] = in.Intern(v)
	}
	return terms
}

// Resolve returns the Value a Term was interned from. It panics if t
// was not produced by this interner, which indicates a programming
// error (a term crossing runtime boundaries) rather than recoverable
// user input.
func (in *Interner) Resolve(t Term) Value {
	if !t.Valid() {
		panic("datalog: Resolve called on an unbound term")
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	idx := int(t.id) - 1
	if idx < 0 || idx >= len(in.values) {
		panic(fmt.Sprintf("datalog: term %d does not belong to this interner", t.id))
	}
	return in.values[idx]
}

// Lookup returns the Term for v without interning it, reporting
// whether v has been interned before. Used by the query engine, the
// evaluator and the runtime to test a constant against already-known
// terms without growing the interner.
func (in *Interner) Lookup(v Value) (Term, bool) {
	key := encodeKey(v)
	in.mu.RLock()
	defer in.mu.RUnlock()
	t, ok := in.byKey[key]
	return t, ok
}

// Len returns the number of distinct terms interned so far.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.values)
}

// encodeKey builds a canonical, type-tagged byte key for v so that
// e.g. the string "1" and the int64 1 never collide. Grounded on the
// teacher's ValueBytes/Type (datalog/value_encoding.go), reworked to
// the smaller Value universe this engine supports.
func encodeKey(v Value) string {
	buf := make([]byte, 0, 16)
	buf = append(buf, byte(TypeOf(v)))
	switch val := v.(type) {
	case string:
		buf = append(buf, val...)
	case int64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(val))
		buf = append(buf, tmp[:]...)
	case float64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(val))
		buf = append(buf, tmp[:]...)
	case bool:
		if val {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case time.Time:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(val.UnixNano()))
		buf = append(buf, tmp[:]...)
	default:
		panic(fmt.Sprintf("datalog: unsupported term value type %T", v))
	}
	return string(buf)
}
