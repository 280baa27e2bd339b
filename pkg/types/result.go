package types

import "time"

// Result is one completed partial-sum computation.
type Result struct {
	// N is the upper bound of the sum.
	N int

	// Sum is Σ 1/i² for i = 1..N.
	Sum float64

	// Gap is π²/6 − Sum. It shrinks roughly like 1/N.
	Gap float64

	// Tolerance is the threshold Converged was judged against.
	Tolerance float64

	// Converged is true when Gap ≤ Tolerance.
	Converged bool

	// Elapsed is the wall time spent in the summation loop.
	Elapsed time.Duration

	// ComputedAt is when the computation finished.
	ComputedAt time.Time
}
