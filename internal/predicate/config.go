package predicate

import (
	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/pkg/config"
)

// FromConfig builds a predicate from configuration. Path matchers (allow
// paths, globs, pattern and expression) are combined with Or, and Methods
// restricts the result. It returns nil when cfg is empty so the caller can
// apply its own default.
func FromConfig(cfg config.PredicateConfig) (ports.Predicate, error) {
	if cfg.Empty() {
		return nil, nil
	}

	var matchers []ports.Predicate
	if len(cfg.AllowPaths) > 0 {
		matchers = append(matchers, AllowPaths(cfg.AllowPaths...))
	}
	if len(cfg.Globs) > 0 {
		p, err := Glob(cfg.Globs...)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "auth.predicate.globs", Reason: err.Error()}
		}
		matchers = append(matchers, p)
	}
	if cfg.Pattern != "" {
		p, err := Regexp(cfg.Pattern)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "auth.predicate.pattern", Reason: err.Error()}
		}
		matchers = append(matchers, p)
	}
	if cfg.Expression != "" {
		p, err := CEL(cfg.Expression)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "auth.predicate.expression", Reason: err.Error()}
		}
		matchers = append(matchers, p)
	}

	var match ports.Predicate = Always
	if len(matchers) > 0 {
		match = Or(matchers...)
	}
	if len(cfg.Methods) > 0 {
		match = And(Methods(cfg.Methods...), match)
	}
	return match, nil
}
