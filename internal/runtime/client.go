// Package runtime assembles a ready-to-use client from configuration: the
// credential source, the predicate, the credential plugin and the client
// itself.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/authpipe/internal/adapters/credentials/cache"
	"github.com/tjfontaine/authpipe/internal/adapters/credentials/sqlite"
	"github.com/tjfontaine/authpipe/internal/adapters/credentials/static"
	"github.com/tjfontaine/authpipe/internal/adapters/credentials/tokensource"
	"github.com/tjfontaine/authpipe/internal/authplugin"
	"github.com/tjfontaine/authpipe/internal/client"
	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/pipeline"
	"github.com/tjfontaine/authpipe/internal/pkg/config"
	"github.com/tjfontaine/authpipe/internal/pkg/safehttp"
	"github.com/tjfontaine/authpipe/internal/predicate"
)

type assembly struct {
	source         ports.CredentialSource
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	stages         []client.Option
	closers        []func() error
}

func (a *assembly) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// NewClient builds a client from cfg. The returned close function releases
// resources held by the credential source (such as the SQLite store) and must
// be called when the client is no longer used.
func NewClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*client.Client, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &assembly{}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.source == nil {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	} else if cfg.Client.BaseURL == "" {
		return nil, nil, &domain.ConfigurationError{Field: "client.base_url", Reason: "is required"}
	}

	httpClient, err := a.buildHTTPClient(cfg.Client)
	if err != nil {
		return nil, nil, err
	}

	src := a.source
	if src == nil {
		src, err = a.buildSource(ctx, cfg.Credentials, httpClient, logger)
		if err != nil {
			a.close()
			return nil, nil, err
		}
	}
	if cfg.Credentials.CacheTTL != "" {
		ttl, err := time.ParseDuration(cfg.Credentials.CacheTTL)
		if err != nil {
			a.close()
			return nil, nil, &domain.ConfigurationError{Field: "credentials.cache_ttl", Reason: err.Error()}
		}
		src = cache.New(src, ttl)
	}

	authCfg, err := buildAuthConfig(cfg.Auth, src, logger)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	clientOpts := []client.Option{
		client.WithHTTPClient(httpClient),
		client.WithLogger(logger),
		client.WithAuth(authCfg),
	}
	if cfg.Client.UserAgent != "" {
		clientOpts = append(clientOpts, client.WithUserAgent(cfg.Client.UserAgent))
	}
	if a.tracerProvider != nil {
		clientOpts = append(clientOpts, client.WithTracerProvider(a.tracerProvider))
	}
	for _, reg := range pipeline.StagesFromConfig(cfg.Client.Headers, cfg.Client.Query) {
		clientOpts = append(clientOpts, client.WithStage(reg.Stage, reg.Key, reg.Handler))
	}
	clientOpts = append(clientOpts, a.stages...)

	c, err := client.New(cfg.Client.BaseURL, clientOpts...)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	logger.Info("client initialized",
		slog.String("base_url", c.BaseURL().String()),
		slog.String("credentials", cfg.Credentials.Type),
		slog.String("auth_identity", authCfg.Identity()),
		slog.String("on_error", string(authCfg.Policy())))

	return c, a.close, nil
}

func (a *assembly) buildHTTPClient(cfg config.ClientConfig) (*http.Client, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "client.timeout", Reason: err.Error()}
	}
	if a.httpClient != nil {
		return a.httpClient, nil
	}

	var transport http.RoundTripper = cleanhttp.DefaultPooledTransport()
	if cfg.PublicOnly {
		transport = safehttp.NewTransport()
	}
	var otelOpts []otelhttp.Option
	if a.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(a.tracerProvider))
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport, otelOpts...),
		Timeout:   timeout,
	}, nil
}

func (a *assembly) buildSource(ctx context.Context, cfg config.CredentialsConfig, httpClient *http.Client, logger *slog.Logger) (ports.CredentialSource, error) {
	switch cfg.Type {
	case "static":
		return static.New(cfg.Token), nil

	case "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		logger.Debug("using sqlite credential store",
			slog.String("path", cfg.SQLite.Path),
			slog.String("name", cfg.SQLite.Name))
		return store.Source(cfg.SQLite.Name), nil

	case "oauth2":
		return tokensource.ClientCredentials(ctx, tokensource.ClientCredentialsConfig{
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			TokenURL:     cfg.OAuth2.TokenURL,
			Scopes:       cfg.OAuth2.Scopes,
		}, httpClient), nil
	}

	return nil, &domain.ConfigurationError{Field: "credentials.type", Reason: fmt.Sprintf("unknown type %q", cfg.Type)}
}

func buildAuthConfig(cfg config.AuthConfig, src ports.CredentialSource, logger *slog.Logger) (*authplugin.Config, error) {
	policy, err := authplugin.ParseFailurePolicy(cfg.OnError)
	if err != nil {
		return nil, err
	}
	match, err := predicate.FromConfig(cfg.Predicate)
	if err != nil {
		return nil, err
	}

	b := authplugin.NewBuilder().
		WithIdentity(cfg.Identity).
		WithCredentialSource(src).
		WithHeader(cfg.Header).
		WithScheme(cfg.Scheme).
		WithDenyPaths(cfg.DenyPaths...).
		WithFailurePolicy(policy).
		WithLogger(logger)
	if match != nil {
		b = b.WithPredicate(match)
	}
	return b.Build()
}
