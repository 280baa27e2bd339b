// Package store caches computed partial sums in memory, keyed by n.
// Results are deterministic so a cache hit is always exact; entries older
// than the TTL are evicted by a background loop so long-lived servers do not
// accumulate every n ever requested.
package store
