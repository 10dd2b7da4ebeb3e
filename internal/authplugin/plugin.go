package authplugin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/pipeline"
)

// Plugin is the post-resolve handler that attaches the credential header.
type Plugin struct {
	cfg *Config
}

// New wraps cfg in a Plugin. Most callers use Install instead.
func New(cfg *Config) *Plugin {
	return &Plugin{cfg: cfg}
}

// Install registers a plugin for cfg at the post-resolve stage of r under
// cfg.Identity(). Installing the same identity twice fails with a
// DuplicateInstallationError.
func Install(r *pipeline.Registry, cfg *Config) error {
	if cfg == nil {
		return &domain.ConfigurationError{Field: "auth", Reason: "plugin config is nil"}
	}
	return r.Register(ports.StagePostResolve, cfg.Identity(), New(cfg))
}

// Key returns the identity the plugin registers under.
func (p *Plugin) Key() string { return p.cfg.identity }

// AllowedStages reports that the plugin only works once the URL is final.
func (p *Plugin) AllowedStages() []ports.StageType {
	return []ports.StageType{ports.StagePostResolve}
}

// Handle evaluates the predicate against the resolved request and, on a
// match, fetches the credential once and sets the header before passing the
// request on.
func (p *Plugin) Handle(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
	if !rc.Resolved() {
		return nil, &domain.MisplacedInterceptionError{
			Key:     p.cfg.identity,
			Stage:   string(ports.StagePreResolve),
			Allowed: []string{string(ports.StagePostResolve)},
		}
	}

	v := rc.View()
	if !p.cfg.match(v) {
		return next(ctx)
	}

	credential, err := p.fetch(ctx)
	if err != nil {
		if p.cfg.policy == FailProceed {
			p.cfg.logger.WarnContext(ctx, "credential fetch failed, sending request without credential",
				slog.String("request_id", rc.ID),
				slog.String("plugin", p.cfg.identity),
				slog.String("path", v.Path),
				slog.String("error", err.Error()))
			return next(ctx)
		}
		p.cfg.logger.DebugContext(ctx, "credential fetch failed",
			slog.String("request_id", rc.ID),
			slog.String("plugin", p.cfg.identity),
			slog.String("error", err.Error()))
		return nil, &domain.CredentialFetchError{
			Key:    p.cfg.identity,
			Method: v.Method,
			Path:   v.Path,
			Err:    err,
		}
	}

	rc.Header.Set(p.cfg.header, p.headerValue(credential))
	return next(ctx)
}

func (p *Plugin) fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	credential, err := p.cfg.source.Credential(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(credential) == "" {
		return "", domain.ErrEmptyCredential
	}
	if !httpguts.ValidHeaderFieldValue(credential) {
		return "", domain.ErrMalformedCredential
	}
	return credential, nil
}

// headerValue prefixes credential with the scheme unless it already carries
// it.
func (p *Plugin) headerValue(credential string) string {
	scheme := p.cfg.scheme
	if scheme == "" {
		return credential
	}
	prefix := scheme + " "
	if len(credential) >= len(prefix) && strings.EqualFold(credential[:len(prefix)], prefix) {
		return credential
	}
	return prefix + credential
}
