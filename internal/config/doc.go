// Package config loads and watches the basel configuration file (config.yaml).
//
// Top-level types:
//   - Config{Run, Server}: full config tree parsed from YAML
//   - RunConfig: n, tolerance, format (plain|json|prom) for one-shot runs
//   - ServerConfig: http_port, grpc_port, warm_terms, max_n, cache_ttl,
//     broadcast_interval for `basel serve`
//
// Load(path) reads the YAML file, applies defaults (n=100000000,
// tolerance=1e-7, ports 8080/50051, 10m cache TTL, 5s broadcast), then
// validates ranges and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. A failed reload is logged and the
// previous config stays in effect.
package config
