// ABOUTME: Configuration loading and parsing for the openmcp server
// ABOUTME: Supports YAML files with environment variable expansion and defaults

package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete openmcp configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Auth     AuthConfig      `yaml:"auth"`
	Logging  LoggingConfig   `yaml:"logging"`
	Services []ServiceConfig `yaml:"services"`
}

// ServerConfig holds HTTP server address configuration.
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	SecretKey      string `yaml:"secret_key"`
	RequireAuth    bool   `yaml:"require_auth"`
	AllowLocalhost bool   `yaml:"allow_localhost"`

	// AccessTokenExpiry is the JWT access token lifetime.
	AccessTokenExpiry time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	AccessTokenExpiryRaw string `yaml:"access_token_expiry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServiceConfig holds per-service enablement and settings.
type ServiceConfig struct {
	Name    string         `yaml:"name"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

// Bool returns the named boolean setting, or def if absent or mistyped.
func (s ServiceConfig) Bool(key string, def bool) bool {
	if v, ok := s.Config[key].(bool); ok {
		return v
	}
	return def
}

// Int returns the named integer setting, or def if absent or mistyped.
// YAML decodes numbers as int; float64 is accepted for values that came
// through JSON round-trips.
func (s ServiceConfig) Int(key string, def int) int {
	switch v := s.Config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// String returns the named string setting, or def if absent or mistyped.
func (s ServiceConfig) String(key string, def string) string {
	if v, ok := s.Config[key].(string); ok {
		return v
	}
	return def
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// If the file does not exist, a default configuration is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

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

// Default builds the default configuration: browseruse enabled with a bounded
// session pool, web_search and web_crawler available, localhost bypass on.
// The JWT secret comes from OPENMCP_SECRET_KEY or is freshly generated.
func Default() *Config {
	secret := os.Getenv("OPENMCP_SECRET_KEY")
	if secret == "" {
		secret = randomSecret()
	}

	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9000,
		},
		Auth: AuthConfig{
			SecretKey:         secret,
			RequireAuth:       true,
			AllowLocalhost:    true,
			AccessTokenExpiry: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Services: []ServiceConfig{
			{
				Name:    "browseruse",
				Enabled: true,
				Config: map[string]any{
					"headless":     true,
					"timeout":      30,
					"max_sessions": 5,
				},
			},
			{
				Name:    "web_search",
				Enabled: false,
				Config: map[string]any{
					"serper_api_key": "${SERPER_API_KEY}",
				},
			},
			{
				Name:    "web_crawler",
				Enabled: true,
				Config: map[string]any{
					"timeout":            30,
					"max_content_length": 1 << 20,
				},
			},
		},
	}
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	c.Auth.AccessTokenExpiryRaw = c.Auth.AccessTokenExpiry.String()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range 1-65535, got %d", c.Server.Port)
	}

	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required")
	}

	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("service entry missing name")
		}
		if seen[svc.Name] {
			return fmt.Errorf("duplicate service entry: %s", svc.Name)
		}
		seen[svc.Name] = true
	}

	return nil
}

// Service returns the configuration entry for the named service, if present.
func (c *Config) Service(name string) (ServiceConfig, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Auth.AccessTokenExpiryRaw != "" {
		d, err := time.ParseDuration(cfg.Auth.AccessTokenExpiryRaw)
		if err != nil {
			return fmt.Errorf("parsing access_token_expiry %q: %w", cfg.Auth.AccessTokenExpiryRaw, err)
		}
		cfg.Auth.AccessTokenExpiry = d
	}
	return nil
}

// applyDefaults fills zero values with sensible defaults after unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9000
	}
	if cfg.Auth.AccessTokenExpiry == 0 {
		cfg.Auth.AccessTokenExpiry = 30 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// randomSecret generates a fresh base64 secret for JWT signing.
func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure is unrecoverable
		panic(fmt.Sprintf("generating secret: %v", err))
	}
	return base64.StdEncoding.EncodeToString(b)
}
