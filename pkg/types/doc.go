// Package types defines the Go types shared by the compute engine, the
// result store and every output surface (CLI, REST API, WebSocket, metrics).
// They are the canonical in-memory representation of one partial-sum run,
// separate from the JSON and Prometheus renderings.
package types
