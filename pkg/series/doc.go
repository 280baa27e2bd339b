// Package series computes truncated partial sums of the Basel series
// Σ 1/i² for i = 1..n.
//
// Sum is the pure core: one loop, one float64 accumulator, terms added in
// strictly increasing i so the result is bit-identical across runs.
// SumContext performs the same accumulation in blocks and checks ctx
// between blocks; it returns exactly what Sum returns for the same n.
//
// The loop index is an int64 so i*i cannot overflow for any n ≤ MaxN.
// Negative n performs zero iterations and yields 0.
package series
