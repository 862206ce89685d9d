package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for non-negative integers; b == 0 yields 0.
func CeilDiv[T constraints.Integer](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RoundDiv returns a/b rounded half up, for non-negative integers.
func RoundDiv[T constraints.Integer](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}
