package series

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Limit is the value the series converges to, π²/6.
const Limit = math.Pi * math.Pi / 6

// MaxN is the largest upper bound whose square still fits in an int64.
const MaxN int64 = 3037000499

// blockSize is the number of terms SumContext adds between context checks.
const blockSize int64 = 1 << 20

// Sentinel errors returned by Validate.
var (
	ErrNegative = errors.New("series: n must not be negative")
	ErrTooLarge = errors.New("series: n exceeds MaxN")
)

// Sum returns Σ 1/i² for i = 1..n, accumulated in increasing i.
// It returns 0 for n ≤ 0. n must not exceed MaxN.
func Sum(n int) float64 {
	return accumulate(0, 1, int64(n))
}

// SumContext is Sum with cancellation. It checks ctx every blockSize terms
// and returns the same bits as Sum when it runs to completion.
func SumContext(ctx context.Context, n int) (float64, error) {
	var total float64
	last := int64(n)
	for lo := int64(1); lo <= last; lo += blockSize {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("series: sum to %d stopped at term %d: %w", n, lo, err)
		}
		hi := lo + blockSize - 1
		if hi > last {
			hi = last
		}
		total = accumulate(total, lo, hi)
	}
	return total, nil
}

// Gap returns how far Sum(n) still is from Limit.
func Gap(n int) float64 {
	return Limit - Sum(n)
}

// Validate reports whether n is an acceptable upper bound for callers that
// take n from outside the process. Sum itself never fails.
func Validate(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: got %d", ErrNegative, n)
	}
	if int64(n) > MaxN {
		return fmt.Errorf("%w: got %d, max %d", ErrTooLarge, n, MaxN)
	}
	return nil
}

// accumulate adds the terms lo..hi onto total in order.
func accumulate(total float64, lo, hi int64) float64 {
	for i := lo; i <= hi; i++ {
		total += 1.0 / float64(i*i)
	}
	return total
}
