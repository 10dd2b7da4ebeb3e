// Package authplugin attaches a credential header to outgoing requests whose
// resolved destination matches a predicate.
//
// The plugin only runs at the post-resolve stage, where the request URL is
// final. Configuration is assembled with a Builder and is immutable once
// built.
package authplugin

import (
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/net/http/httpguts"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/predicate"
)

// FailurePolicy decides what happens to a request whose credential could not
// be fetched.
type FailurePolicy string

const (
	// FailAbort fails the request with a CredentialFetchError. The request is
	// never transmitted.
	FailAbort FailurePolicy = "abort"
	// FailProceed transmits the request without the credential header.
	FailProceed FailurePolicy = "proceed"
)

// Defaults applied by Builder.Build.
const (
	DefaultIdentity = "bearer-auth"
	DefaultHeader   = "Authorization"
	DefaultScheme   = "Bearer"
)

// ParseFailurePolicy converts a configuration value into a FailurePolicy.
// The empty string selects FailAbort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailAbort:
		return FailAbort, nil
	case FailProceed:
		return FailProceed, nil
	}
	return "", &domain.ConfigurationError{
		Field:  "on_error",
		Reason: fmt.Sprintf("unknown failure policy %q (must be abort or proceed)", s),
	}
}

// Config is the validated, immutable plugin configuration.
type Config struct {
	identity string
	header   string
	scheme   string
	match    ports.Predicate
	source   ports.CredentialSource
	policy   FailurePolicy
	logger   *slog.Logger
}

// Identity returns the registry key the plugin is installed under.
func (c *Config) Identity() string { return c.identity }

// Header returns the canonical name of the credential header.
func (c *Config) Header() string { return c.header }

// Scheme returns the value prefix, e.g. "Bearer". It may be empty.
func (c *Config) Scheme() string { return c.scheme }

// Policy returns the credential fetch failure policy.
func (c *Config) Policy() FailurePolicy { return c.policy }

// Matches reports whether the request described by v should carry the
// credential.
func (c *Config) Matches(v domain.View) bool { return c.match(v) }

// Builder assembles a Config. The zero value is not usable; call NewBuilder.
type Builder struct {
	identity  string
	header    string
	scheme    *string
	match     ports.Predicate
	denyPaths []string
	source    ports.CredentialSource
	policy    FailurePolicy
	logger    *slog.Logger
}

// NewBuilder creates a builder with no credential source and no predicate.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithIdentity sets the registry key. Two plugins on the same pipeline need
// different identities.
func (b *Builder) WithIdentity(identity string) *Builder {
	b.identity = identity
	return b
}

// WithCredentialSource sets the source queried for every matching request.
// It is required.
func (b *Builder) WithCredentialSource(src ports.CredentialSource) *Builder {
	b.source = src
	return b
}

// WithPredicate sets the decision function. Without a predicate and without
// a deny list no request receives a credential.
func (b *Builder) WithPredicate(p ports.Predicate) *Builder {
	b.match = p
	return b
}

// WithDenyPaths excludes requests whose path exactly equals one of paths.
// When combined with WithPredicate both must allow the request.
func (b *Builder) WithDenyPaths(paths ...string) *Builder {
	b.denyPaths = append(b.denyPaths, paths...)
	return b
}

// WithHeader sets the credential header name.
func (b *Builder) WithHeader(name string) *Builder {
	b.header = name
	return b
}

// WithScheme sets the value prefix. An empty scheme sends the raw credential.
func (b *Builder) WithScheme(scheme string) *Builder {
	b.scheme = &scheme
	return b
}

// WithFailurePolicy sets what happens when the credential cannot be fetched.
func (b *Builder) WithFailurePolicy(p FailurePolicy) *Builder {
	b.policy = p
	return b
}

// WithLogger sets the logger used for skipped and failed fetches.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the settings and returns an immutable Config.
func (b *Builder) Build() (*Config, error) {
	if b.source == nil {
		return nil, &domain.ConfigurationError{Field: "credential_source", Reason: "a credential source is required"}
	}

	cfg := &Config{
		identity: b.identity,
		header:   b.header,
		scheme:   DefaultScheme,
		source:   b.source,
		logger:   b.logger,
	}
	if cfg.identity == "" {
		cfg.identity = DefaultIdentity
	}
	if cfg.header == "" {
		cfg.header = DefaultHeader
	}
	if !httpguts.ValidHeaderFieldName(cfg.header) {
		return nil, &domain.ConfigurationError{Field: "header", Reason: fmt.Sprintf("invalid header name %q", cfg.header)}
	}
	cfg.header = http.CanonicalHeaderKey(cfg.header)

	if b.scheme != nil {
		cfg.scheme = *b.scheme
	}
	if !httpguts.ValidHeaderFieldValue(cfg.scheme) {
		return nil, &domain.ConfigurationError{Field: "scheme", Reason: fmt.Sprintf("invalid scheme %q", cfg.scheme)}
	}

	policy, err := ParseFailurePolicy(string(b.policy))
	if err != nil {
		return nil, err
	}
	cfg.policy = policy

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	switch {
	case b.match == nil && len(b.denyPaths) == 0:
		cfg.match = predicate.Never
	case b.match == nil:
		cfg.match = predicate.DenyPaths(b.denyPaths...)
	case len(b.denyPaths) == 0:
		cfg.match = b.match
	default:
		cfg.match = predicate.And(predicate.DenyPaths(b.denyPaths...), b.match)
	}

	return cfg, nil
}
