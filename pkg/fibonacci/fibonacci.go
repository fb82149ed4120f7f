// Package fibonacci computes Fibonacci numbers two ways: naive recursion
// and a bottom-up loop. Both use F(0)=0, F(1)=1.
package fibonacci

import (
	"errors"
	"fmt"
)

// MaxN is the largest index whose value fits in a uint64.
const MaxN = 93

var (
	// ErrNegative is returned for a negative index
	ErrNegative = errors.New("n must not be negative")

	// ErrTooLarge is returned when the result would overflow uint64
	ErrTooLarge = fmt.Errorf("n must not exceed %d", MaxN)
)

// Recursive computes F(n) by naive recursion. Exponential time; callers
// should bound n.
func Recursive(n int) (uint64, error) {
	if err := validate(n); err != nil {
		return 0, err
	}
	return recurse(n), nil
}

func recurse(n int) uint64 {
	if n < 2 {
		return uint64(n)
	}
	return recurse(n-1) + recurse(n-2)
}

// Iterative computes F(n) in linear time and constant space.
func Iterative(n int) (uint64, error) {
	if err := validate(n); err != nil {
		return 0, err
	}
	var prev, curr uint64 = 0, 1
	if n == 0 {
		return prev, nil
	}
	for i := 2; i <= n; i++ {
		prev, curr = curr, prev+curr
	}
	return curr, nil
}

func validate(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: got %d", ErrNegative, n)
	}
	if n > MaxN {
		return fmt.Errorf("%w: got %d", ErrTooLarge, n)
	}
	return nil
}
