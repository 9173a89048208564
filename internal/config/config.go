// ABOUTME: Configuration loading and parsing for dorc-gateway
// ABOUTME: YAML with environment variable expansion, TOML static-key table

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete dorc-gateway configuration. It is loaded
// once at startup and never mutated afterwards; request handlers only ever
// read it.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Backend BackendConfig `yaml:"backend"`
	Routes  []RouteConfig `yaml:"routes"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the listener address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	// JWTSecret is the symmetric secret used to issue and verify signed
	// tokens. Optional when a static-key table is configured.
	JWTSecret string `yaml:"jwt_secret"`
	// Issuer is the fixed issuer constant signed tokens must carry.
	// Defaults to "dorc".
	Issuer string `yaml:"issuer"`
	// StaticKeysFile points at the TOML static-key table. Optional.
	StaticKeysFile string `yaml:"static_keys_file"`

	// StaticKeyTTL bounds how long a static-key capability is valid after
	// resolution. Zero means static keys never expire.
	StaticKeyTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	StaticKeyTTLRaw string `yaml:"static_key_ttl"`
}

// BackendConfig holds the internal backend address and call timeout.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// RouteConfig maps one protected route to the operation it requires. The
// mapping is fixed configuration; the gateway never infers operations
// from payloads.
type RouteConfig struct {
	Method    string `yaml:"method"`
	Path      string `yaml:"path"`
	Operation string `yaml:"operation"`
}

// AuditConfig holds audit persistence configuration. When Path is empty,
// audit records go to the structured log only.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func applyDefaults(cfg *Config) {
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "dorc"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Auth.JWTSecret == "" && c.Auth.StaticKeysFile == "" {
		return fmt.Errorf("auth.jwt_secret or auth.static_keys_file is required")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route mapping is required")
	}
	for i, r := range c.Routes {
		if r.Method == "" || r.Path == "" || r.Operation == "" {
			return fmt.Errorf("routes[%d]: method, path, and operation are required", i)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.StaticKeyTTLRaw != "" {
		cfg.Auth.StaticKeyTTL, err = time.ParseDuration(cfg.Auth.StaticKeyTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing static_key_ttl %q: %w", cfg.Auth.StaticKeyTTLRaw, err)
		}
	}

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	return nil
}
