// Package authclient provides the public API for building HTTP clients that
// attach credentials only to selected, fully resolved requests.
// This is the stable API for external consumers.
package authclient

import (
	"github.com/tjfontaine/authpipe/internal/adapters/credentials/cache"
	"github.com/tjfontaine/authpipe/internal/adapters/credentials/static"
	"github.com/tjfontaine/authpipe/internal/adapters/credentials/tokensource"
	"github.com/tjfontaine/authpipe/internal/authplugin"
	"github.com/tjfontaine/authpipe/internal/client"
	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/predicate"
)

// Client sends requests through the interception pipeline.
// See internal/client.Client for full documentation.
type Client = client.Client

// Request describes one call relative to the client's base URL.
type Request = client.Request

// Option is a functional option for configuring a Client.
type Option = client.Option

// New creates a new Client for a base URL.
// Example:
//
//	auth, err := authclient.NewAuth().
//	    WithCredentialSource(authclient.StaticToken(token)).
//	    WithDenyPaths("/auth/login", "/auth/reissue").
//	    Build()
//	c, err := authclient.New("https://api.example.com", authclient.WithAuth(auth))
var New = client.New

// Client options
var (
	WithHTTPClient     = client.WithHTTPClient
	WithLogger         = client.WithLogger
	WithTracerProvider = client.WithTracerProvider
	WithUserAgent      = client.WithUserAgent
	WithStage          = client.WithStage
	WithAuth           = client.WithAuth
	WithRequestID      = client.WithRequestID
)

// Credential plugin configuration
type (
	AuthConfig    = authplugin.Config
	AuthBuilder   = authplugin.Builder
	FailurePolicy = authplugin.FailurePolicy
)

const (
	FailAbort   = authplugin.FailAbort
	FailProceed = authplugin.FailProceed
)

// NewAuth starts a credential plugin configuration.
var NewAuth = authplugin.NewBuilder

// Pipeline contract
type (
	Stage            = ports.StageType
	Handler          = ports.Handler
	HandlerFunc      = ports.HandlerFunc
	Proceed          = ports.Proceed
	Predicate        = ports.Predicate
	CredentialSource = ports.CredentialSource
	CredentialFunc   = ports.CredentialSourceFunc
	RequestContext   = domain.RequestContext
	View             = domain.View
)

const (
	StagePreResolve  = ports.StagePreResolve
	StagePostResolve = ports.StagePostResolve
)

// Credential sources
var (
	StaticToken             = static.New
	TokenFromEnv            = static.FromEnv
	OAuth2TokenSource       = tokensource.New
	OAuth2ClientCredentials = tokensource.ClientCredentials
	Cached                  = cache.New
)

// Predicates
var (
	Never      = predicate.Never
	Always     = predicate.Always
	Not        = predicate.Not
	And        = predicate.And
	Or         = predicate.Or
	DenyPaths  = predicate.DenyPaths
	AllowPaths = predicate.AllowPaths
	Glob       = predicate.Glob
	Regexp     = predicate.Regexp
	Methods    = predicate.Methods
	HasHeader  = predicate.HasHeader
	CEL        = predicate.CEL
)

// Errors
type (
	ConfigurationError         = domain.ConfigurationError
	MisplacedInterceptionError = domain.MisplacedInterceptionError
	DuplicateInstallationError = domain.DuplicateInstallationError
	CredentialFetchError       = domain.CredentialFetchError
)

var (
	ErrURLFinal            = domain.ErrURLFinal
	ErrNotResolved         = domain.ErrNotResolved
	ErrEmptyCredential     = domain.ErrEmptyCredential
	ErrMalformedCredential = domain.ErrMalformedCredential
)
