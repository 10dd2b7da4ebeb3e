package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/authpipe/internal/core/domain"
)

// EnvPrefix prefixes environment overrides. Levels are separated by "__",
// e.g. AUTHPIPE_CLIENT__BASE_URL.
const EnvPrefix = "AUTHPIPE_"

type Config struct {
	Client      ClientConfig      `koanf:"client"`
	Auth        AuthConfig        `koanf:"auth"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

type ClientConfig struct {
	BaseURL   string `koanf:"base_url"`
	Timeout   string `koanf:"timeout"` // Duration string like "30s"
	UserAgent string `koanf:"user_agent"`
	// PublicOnly refuses connections to loopback and private addresses.
	PublicOnly bool              `koanf:"public_only"`
	Headers    map[string]string `koanf:"headers"` // added to every request unless already set
	Query      map[string]string `koanf:"query"`   // default query parameters
}

// AuthConfig configures the credential interception plugin.
type AuthConfig struct {
	Identity  string          `koanf:"identity"`
	Header    string          `koanf:"header"`
	Scheme    string          `koanf:"scheme"`
	OnError   string          `koanf:"on_error"`   // abort (default) or proceed
	DenyPaths []string        `koanf:"deny_paths"` // exact paths that never receive a credential
	Predicate PredicateConfig `koanf:"predicate"`
}

// PredicateConfig selects requests that receive a credential. Path matchers
// are combined with OR; Methods further restricts the result.
type PredicateConfig struct {
	AllowPaths []string `koanf:"allow_paths"`
	Globs      []string `koanf:"globs"`
	Pattern    string   `koanf:"pattern"`    // regular expression over the path
	Methods    []string `koanf:"methods"`    // restricts all other matchers
	Expression string   `koanf:"expression"` // CEL expression
}

// Empty reports whether no matcher is configured.
func (p PredicateConfig) Empty() bool {
	return len(p.AllowPaths) == 0 && len(p.Globs) == 0 && p.Pattern == "" &&
		len(p.Methods) == 0 && p.Expression == ""
}

type CredentialsConfig struct {
	Type     string       `koanf:"type"` // static, sqlite, oauth2
	Token    string       `koanf:"token"`
	CacheTTL string       `koanf:"cache_ttl"` // Optional: cache credentials for this duration
	SQLite   SQLiteConfig `koanf:"sqlite"`
	OAuth2   OAuth2Config `koanf:"oauth2"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
	Name string `koanf:"name"` // credential name in the store
}

type OAuth2Config struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	TokenURL     string   `koanf:"token_url"`
	Scopes       []string `koanf:"scopes"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (if it exists) and then environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"client.timeout":   "30s",
		"auth.identity":    "bearer-auth",
		"auth.header":      "Authorization",
		"auth.scheme":      "Bearer",
		"auth.on_error":    "abort",
		"credentials.type": "static",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.Credentials.Token = substituteEnvVars(cfg.Credentials.Token)
	cfg.Credentials.OAuth2.ClientSecret = substituteEnvVars(cfg.Credentials.OAuth2.ClientSecret)

	return &cfg, nil
}

// Validate checks settings that can be verified without building anything.
func (c *Config) Validate() error {
	if c.Client.BaseURL == "" {
		return &domain.ConfigurationError{Field: "client.base_url", Reason: "is required"}
	}
	if _, err := c.Client.TimeoutDuration(); err != nil {
		return &domain.ConfigurationError{Field: "client.timeout", Reason: err.Error()}
	}
	if c.Credentials.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Credentials.CacheTTL); err != nil {
			return &domain.ConfigurationError{Field: "credentials.cache_ttl", Reason: err.Error()}
		}
	}

	switch c.Credentials.Type {
	case "static":
		if c.Credentials.Token == "" {
			return &domain.ConfigurationError{Field: "credentials.token", Reason: "is required for static credentials"}
		}
	case "sqlite":
		if c.Credentials.SQLite.Path == "" || c.Credentials.SQLite.Name == "" {
			return &domain.ConfigurationError{Field: "credentials.sqlite", Reason: "path and name are required"}
		}
	case "oauth2":
		o := c.Credentials.OAuth2
		if o.ClientID == "" || o.TokenURL == "" {
			return &domain.ConfigurationError{Field: "credentials.oauth2", Reason: "client_id and token_url are required"}
		}
	default:
		return &domain.ConfigurationError{
			Field:  "credentials.type",
			Reason: fmt.Sprintf("unknown type %q (must be static, sqlite or oauth2)", c.Credentials.Type),
		}
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (c ClientConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
