package datalog

import (
	"testing"
)

func TestInternIsStableAndAppendOnly(t *testing.T) {
	in := NewInterner()

	a := in.Intern("alice")
	b := in.Intern("alice")
	if a != b {
		t.Fatalf("interning the same value twice produced different terms: %v != %v", a, b)
	}

	c := in.Intern("bob")
	if a == c {
		t.Fatal("distinct values interned to the same term")
	}
	if in.Len() != 2 {
		t.Fatalf("expected 2 distinct terms, got %d", in.Len())
	}
}

func TestInternDistinguishesTypes(t *testing.T) {
	in := NewInterner()

	s := in.Intern("1")
	i := in.Intern(int64(1))
	if s == i {
		t.Fatal("string \"1\" and int64 1 must intern to different terms")
	}
}

func TestResolveRoundTrips(t *testing.T) {
	in := NewInterner()
	t1 := in.Intern(int64(42))
	if got := in.Resolve(t1); got != int64(42) {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestZeroTermIsInvalid(t *testing.T) {
	var zero Term
	if zero.Valid() {
		t.Fatal("zero-value Term must be invalid")
	}
}

func TestCompareValues(t *testing.T) {
	if CompareValues(int64(1), int64(2)) >= 0 {
		t.Fatal("expected 1 < 2")
	}
	if CompareValues("a", "b") >= 0 {
		t.Fatal("expected \"a\" < \"b\"")
	}
	if CompareValues(nil, int64(1)) >= 0 {
		t.Fatal("expected nil < any value")
	}
}
