// Package config defines the engine's YAML-loadable configuration shape,
// ported from the teacher's internal/core/config.go (ConfigManager
// Load/Save pattern using gopkg.in/yaml.v3). Reading the file from disk and
// binding it to CLI flags stays the caller's job (spec.md §1 lists config
// persistence as an external collaborator); this package only owns the
// struct, validation, and an optional file loader for convenience.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"duskline/internal/log"
)

// ScanConfig configures the Endpoint Scanner.
type ScanConfig struct {
	CDN    string `yaml:"cdn"`
	// CDNAlternatives lists additional CDN tags the scanner can fail over
	// to (via a CDNPool) when CDN's own candidates keep coming back
	// unclean. Empty means "CDN only, no failover".
	CDNAlternatives []string      `yaml:"cdn_alternatives"`
	Ports           []int         `yaml:"ports"`
	MaxIPs          int           `yaml:"max_ips"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxLatency      time.Duration `yaml:"max_latency"`
}

// BreakerConfig configures the Circuit Breaker.
type BreakerConfig struct {
	Threshold   int           `yaml:"threshold"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	MaxLatency  time.Duration `yaml:"max_latency"`
}

// PortHopConfig configures the Port Hopper.
type PortHopConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Pool        []uint16      `yaml:"pool"`
	HopInterval time.Duration `yaml:"hop_interval"`
	Strategy    string        `yaml:"strategy"` // sequential|random|weighted|latency|adaptive
}

// DPIConfig configures the Anti-DPI Transformer's default mode/profile.
type DPIConfig struct {
	Mode    string `yaml:"mode"`    // normal|aggressive|stealth|ghost|adaptive
	Profile string `yaml:"profile"` // streaming|download|gaming|voice|social
}

// DialerConfig lists the layer stack the Nested Dialer should build.
type DialerConfig struct {
	SNI           string `yaml:"sni"`
	FingerprintID string `yaml:"fingerprint_id"`
	UseHybrid     bool   `yaml:"use_hybrid"`
	UseMux        bool   `yaml:"use_mux"`
}

// MonitoringConfig configures the Orchestration Engine's tick intervals.
type MonitoringConfig struct {
	Interval       time.Duration `yaml:"interval"`
	HealthInterval time.Duration `yaml:"health_interval"`
}

// Config is the top-level engine configuration.
type Config struct {
	Scan       ScanConfig       `yaml:"scan"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	PortHop    PortHopConfig    `yaml:"port_hop"`
	DPI        DPIConfig        `yaml:"dpi"`
	Dialer     DialerConfig     `yaml:"dialer"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Log        log.Config       `yaml:"log"`
}

// Default returns a configuration with every field set to the values
// spec.md names as defaults (60s port-hop, 10s monitoring tick, etc).
func Default() Config {
	return Config{
		Scan: ScanConfig{
			CDN:             "cloudflare",
			CDNAlternatives: []string{"fastly", "gcore"},
			Ports:           []int{443, 8443},
			MaxIPs:          32,
			Timeout:         5 * time.Second,
			MaxLatency:      300 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Threshold:   3,
			OpenTimeout: 30 * time.Second,
			MaxLatency:  300 * time.Millisecond,
		},
		PortHop: PortHopConfig{
			Enabled:     true,
			Pool:        []uint16{443, 2053, 2083, 2087, 2096, 8443},
			HopInterval: 60 * time.Second,
			Strategy:    "adaptive",
		},
		DPI: DPIConfig{
			Mode:    "adaptive",
			Profile: "streaming",
		},
		Dialer: DialerConfig{
			UseHybrid: true,
			UseMux:    true,
		},
		Monitoring: MonitoringConfig{
			Interval:       10 * time.Second,
			HealthInterval: 30 * time.Second,
		},
	}
}

// Load reads and parses a YAML config file on top of Default(), so fields
// the file leaves unset keep their default values, then validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[Config] read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("[Config] parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants that the rest of the engine
// assumes hold (non-empty port pool, sane thresholds, ...).
func (c *Config) Validate() error {
	if c.Scan.CDN == "" {
		return fmt.Errorf("[Config] scan.cdn is required")
	}
	if len(c.Scan.Ports) == 0 {
		return fmt.Errorf("[Config] scan.ports must not be empty")
	}
	if c.Scan.MaxIPs <= 0 {
		return fmt.Errorf("[Config] scan.max_ips must be positive")
	}
	if c.Breaker.Threshold <= 0 {
		return fmt.Errorf("[Config] breaker.threshold must be positive")
	}
	if c.PortHop.Enabled && len(c.PortHop.Pool) == 0 {
		return fmt.Errorf("[Config] port_hop.pool must not be empty when enabled")
	}
	return nil
}
