package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basel-bench/basel/pkg/series"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultN                 = 100_000_000
	DefaultTolerance         = 1e-7
	DefaultFormat            = FormatPlain
	DefaultHTTPPort          = 8080
	DefaultGRPCPort          = 50051
	DefaultMaxN              = 1_000_000_000
	DefaultCacheTTL          = 10 * time.Minute
	DefaultBroadcastInterval = 5 * time.Second
)

// Output formats accepted by run.format.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatProm  = "prom"
)

// Config is the top-level configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Run    RunConfig    `yaml:"run"`
	Server ServerConfig `yaml:"server"`
}

// RunConfig holds the settings for a single computation.
type RunConfig struct {
	// N is the upper bound of the partial sum.
	N int `yaml:"n"`

	// Tolerance is the largest gap to π²/6 still reported as converged.
	Tolerance float64 `yaml:"tolerance"`

	// Format selects how the result is printed: plain | json | prom.
	Format string `yaml:"format"`
}

// ServerConfig holds the settings for `basel serve`.
type ServerConfig struct {
	// HTTPPort is the port the REST API, /metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort is the port the gRPC health service listens on.
	GRPCPort int `yaml:"grpc_port"`

	// WarmTerms are computed at startup, before health reports SERVING.
	WarmTerms []int `yaml:"warm_terms"`

	// MaxN caps n for API requests. Must not exceed series.MaxN.
	MaxN int `yaml:"max_n"`

	// CacheTTL is how long a computed result stays in the store.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// BroadcastInterval controls how often WebSocket clients get the results.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is also
// what the CLI runs with when no config file is given.
func Defaults() *Config {
	return &Config{
		Run: RunConfig{
			N:         DefaultN,
			Tolerance: DefaultTolerance,
			Format:    DefaultFormat,
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			GRPCPort:          DefaultGRPCPort,
			MaxN:              DefaultMaxN,
			CacheTTL:          DefaultCacheTTL,
			BroadcastInterval: DefaultBroadcastInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if err := series.Validate(cfg.Run.N); err != nil {
		return fmt.Errorf("run.n: %w", err)
	}
	if cfg.Run.Tolerance <= 0 {
		return fmt.Errorf("run.tolerance must be positive")
	}
	if err := ValidateFormat(cfg.Run.Format); err != nil {
		return fmt.Errorf("run.format: %w", err)
	}

	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", s.HTTPPort)
	}
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", s.GRPCPort)
	}
	if s.HTTPPort == s.GRPCPort {
		return fmt.Errorf("server.http_port and server.grpc_port must differ")
	}
	if err := series.Validate(s.MaxN); err != nil {
		return fmt.Errorf("server.max_n: %w", err)
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("server.cache_ttl must be positive")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	for i, n := range s.WarmTerms {
		if n < 0 || n > s.MaxN {
			return fmt.Errorf("server.warm_terms[%d] = %d: must be within [0, max_n=%d]", i, n, s.MaxN)
		}
	}
	return nil
}

// ValidateFormat reports whether f is a known output format.
func ValidateFormat(f string) error {
	switch f {
	case FormatPlain, FormatJSON, FormatProm:
		return nil
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}
