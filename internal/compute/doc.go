// Package compute runs partial-sum computations on behalf of the CLI and the
// server.
//
// Engine.Compute validates n, answers from the result store when it can,
// otherwise runs series.SumContext under the caller's context, times it,
// derives the gap to π²/6 and a convergence verdict, and stores the result.
// Concurrent requests for the same n share one summation.
//
// The convergence verdict is re-judged against the current tolerance on every
// call, so a tolerance change after a config reload never needs a recompute.
package compute
