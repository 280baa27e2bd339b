// Package ws streams cached partial-sum results to WebSocket clients.
//
// A client connecting to the hub receives the current result list at once
// and then again on every broadcast tick, or earlier when Kick is called
// (for example after warm-up finishes). Clients that fall behind and fill
// their outgoing buffer are dropped.
package ws
