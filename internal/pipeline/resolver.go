package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// BaseURLResolver resolves request targets against a base URL.
type BaseURLResolver struct {
	base *url.URL
}

// NewBaseURLResolver parses base, which must be absolute. A trailing slash is
// added so relative targets resolve beneath the base path.
func NewBaseURLResolver(base string) (*BaseURLResolver, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "base_url", Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, &domain.ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("%q must be an absolute URL", base)}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		u.RawPath = ""
	}
	return &BaseURLResolver{base: u}, nil
}

// Base returns a copy of the base URL.
func (r *BaseURLResolver) Base() *url.URL {
	u := *r.base
	return &u
}

// Resolve implements ports.Resolver.
func (r *BaseURLResolver) Resolve(rc *domain.RequestContext) error {
	return rc.Resolve(r.base)
}

// AbsoluteResolver accepts only absolute targets.
type AbsoluteResolver struct{}

// Resolve implements ports.Resolver.
func (AbsoluteResolver) Resolve(rc *domain.RequestContext) error {
	return rc.Resolve(nil)
}

var (
	_ ports.Resolver = (*BaseURLResolver)(nil)
	_ ports.Resolver = AbsoluteResolver{}
)
