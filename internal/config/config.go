// Package config loads the policy daemon's YAML configuration, the way the
// teacher's gateway loads its own (gateway/config/config.go): defaults
// merged with an optional file, then validated before the daemon starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig configures one named token-bucket limit a route can opt
// into (mint and verify are limited independently by default).
type RateLimitConfig struct {
	ID            string  `yaml:"id"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`
}

// ObservabilityConfig toggles the daemon's Prometheus/OTel surface.
type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	Tracing       bool   `yaml:"tracing"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
}

// AuthConfig configures the HMAC API-key scheme guarding the mint/verify
// HTTP API (spec §6). Each entry in Secrets maps an API key identifier to
// its shared signing secret.
type AuthConfig struct {
	Enabled       bool              `yaml:"enabled"`
	Secrets       map[string]string `yaml:"secrets"`
	ClockSkew     time.Duration     `yaml:"clockSkew"`
	NonceTTL      time.Duration     `yaml:"nonceTTL"`
	NonceCapacity int               `yaml:"nonceCapacity"`
}

// PerDayCounterConfig selects and configures the per-day-count host
// callback's backing store (spec §4.6).
type PerDayCounterConfig struct {
	// Backend is "memory" or "leveldb"; memory is the default.
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

// ThresholdConfig seeds a ThresholdRegistry's k-of-n member set (spec §4.6).
type ThresholdConfig struct {
	K       int      `yaml:"k"`
	Members []string `yaml:"members"`
}

// SigningConfig supplies the daemon's own Ed25519 issuing key (spec §4.5
// Mint) as a hex-encoded 32-byte seed, plus a service domain string. In
// splcrypto.DeriveServiceKey a service domain is the HKDF info input; the
// HKDF salt there is fixed and not configurable.
type SigningConfig struct {
	SeedHex      string `yaml:"seedHex"`
	ServiceDomain string `yaml:"serviceDomain"`
}

// Config is the policy daemon's full configuration (spec §6 CLI/HTTP shape).
type Config struct {
	ListenAddress string               `yaml:"listen"`
	ReadTimeout   time.Duration        `yaml:"readTimeout"`
	WriteTimeout  time.Duration        `yaml:"writeTimeout"`
	IdleTimeout   time.Duration        `yaml:"idleTimeout"`
	RateLimits    []RateLimitConfig    `yaml:"rateLimits"`
	Observability ObservabilityConfig  `yaml:"observability"`
	Auth          AuthConfig           `yaml:"auth"`
	PerDayCounter PerDayCounterConfig  `yaml:"perDayCounter"`
	Threshold     ThresholdConfig      `yaml:"threshold"`
	Signing       SigningConfig        `yaml:"signing"`
	DefaultGas    int64                `yaml:"defaultGas"`
}

var errConfigNil = errors.New("config is nil")

// Load reads a YAML config file at path, filling in the same sensible
// defaults the teacher's gateway config ships (listen address, timeouts,
// observability on by default); an empty path validates the defaults alone,
// which fail because auth is enabled by default with no secrets configured.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) == "" {
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("validate config: %w", err)
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		ListenAddress: ":8443",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		DefaultGas:    10_000,
		Observability: ObservabilityConfig{
			ServiceName:   "policyd",
			Metrics:       true,
			Tracing:       true,
			LogRequests:   true,
			MetricsPrefix: "policyd",
		},
		Auth: AuthConfig{
			Enabled:       true,
			ClockSkew:     2 * time.Minute,
			NonceTTL:      10 * time.Minute,
			NonceCapacity: 4096,
		},
		PerDayCounter: PerDayCounterConfig{
			Backend:  "memory",
			Capacity: 4096,
		},
		Signing: SigningConfig{
			ServiceDomain: "policyd.default",
		},
	}
}

// Validate enforces the invariants a misconfigured daemon must fail fast on
// rather than start half-authenticated, mirroring the teacher's
// isSensitiveDeployment/Validate split.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errConfigNil
	}
	if cfg.Auth.Enabled && len(cfg.Auth.Secrets) == 0 {
		return errors.New("auth.secrets must list at least one API key when auth.enabled is true")
	}
	for key, secret := range cfg.Auth.Secrets {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(secret) == "" {
			return fmt.Errorf("auth.secrets entries must have non-empty key and secret")
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.PerDayCounter.Backend)) {
	case "", "memory":
	case "leveldb":
		if strings.TrimSpace(cfg.PerDayCounter.Path) == "" {
			return errors.New("perDayCounter.path is required when backend is leveldb")
		}
	default:
		return fmt.Errorf("unsupported perDayCounter.backend %q", cfg.PerDayCounter.Backend)
	}
	if cfg.Threshold.K < 0 {
		return errors.New("threshold.k must not be negative")
	}
	if cfg.DefaultGas <= 0 {
		cfg.DefaultGas = 10_000
	}
	return nil
}
