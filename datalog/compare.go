package datalog

import "time"

// CompareValues orders two resolved term values. It mirrors the
// teacher's CompareValues (datalog/compare.go) cut down to the value
// universe this engine supports: nils sort first, then values compare
// within their own type, and values of different types are ordered by
// their ValueType tag so a total order always exists. Nothing in the
// engine's evaluation or query path calls it; query results do not
// depend on it.
func CompareValues(left, right Value) int {
	if left == nil && right == nil {
		return 0
	}
	if left == nil {
		return -1
	}
	if right == nil {
		return 1
	}

	lt, rt := TypeOf(left), TypeOf(right)
	if lt != rt {
		if lt < rt {
			return -1
		}
		return 1
	}

	switch l := left.(type) {
	case string:
		r := right.(string)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		default:
			return 0
		}
	case int64:
		r := right.(int64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		default:
			return 0
		}
	case float64:
		r := right.(float64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		default:
			return 0
		}
	case bool:
		r := right.(bool)
		if l == r {
			return 0
		}
		if !l {
			return -1
		}
		return 1
	default:
		tl := left.(time.Time)
		tr := right.(time.Time)
		switch {
		case tl.Before(tr):
			return -1
		case tl.After(tr):
			return 1
		default:
			return 0
		}
	}
}
