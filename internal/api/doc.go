// Package api implements the HTTP REST API served by `basel serve`.
//
// Endpoints (all GET):
//
//	/api/v1/series?n=N  compute (or fetch from cache) the partial sum for N
//	/api/v1/results     every cached result, ascending n
//	/api/v1/health      limit, cache size and hit/miss counters
//	/metrics            Prometheus text exposition of the cached results
//
// Errors are returned as {"error": "..."} with a 4xx/5xx status.
package api
