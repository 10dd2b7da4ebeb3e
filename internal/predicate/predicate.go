// Package predicate provides the decision functions that select which
// resolved requests receive a credential.
//
// Predicates compare the view exactly as exposed: Path is percent-decoded and
// neither trailing slashes nor case are normalised.
package predicate

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// Never matches no request. It is the default when nothing is configured.
func Never(domain.View) bool { return false }

// Always matches every request.
func Always(domain.View) bool { return true }

// Not inverts p. A nil p is treated as Never, so Not(nil) matches every
// request.
func Not(p ports.Predicate) ports.Predicate {
	if p == nil {
		return Always
	}
	return func(v domain.View) bool {
		return !p(v)
	}
}

// And matches when every non-nil predicate matches.
func And(ps ...ports.Predicate) ports.Predicate {
	ps = compact(ps)
	return func(v domain.View) bool {
		for _, p := range ps {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

// Or matches when any non-nil predicate matches.
func Or(ps ...ports.Predicate) ports.Predicate {
	ps = compact(ps)
	return func(v domain.View) bool {
		for _, p := range ps {
			if p(v) {
				return true
			}
		}
		return false
	}
}

// DenyPaths matches every request whose path is not in paths. Comparison is
// an exact string match.
func DenyPaths(paths ...string) ports.Predicate {
	return Not(AllowPaths(paths...))
}

// AllowPaths matches requests whose path is exactly one of paths.
func AllowPaths(paths ...string) ports.Predicate {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(v domain.View) bool {
		_, ok := set[v.Path]
		return ok
	}
}

// Glob matches requests whose path matches any of the doublestar patterns,
// e.g. "/api/**" or "/users/*/profile".
func Glob(patterns ...string) (ports.Predicate, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	return func(v domain.View) bool {
		for _, pattern := range patterns {
			// Patterns were validated above, so errors cannot occur here.
			if ok, _ := doublestar.Match(pattern, v.Path); ok {
				return true
			}
		}
		return false
	}, nil
}

// Regexp matches requests whose path matches expr.
func Regexp(expr string) (ports.Predicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid path pattern: %w", err)
	}
	return func(v domain.View) bool {
		return re.MatchString(v.Path)
	}, nil
}

// Methods matches requests using one of methods, compared case-insensitively.
func Methods(methods ...string) ports.Predicate {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = struct{}{}
	}
	return func(v domain.View) bool {
		_, ok := set[strings.ToUpper(v.Method)]
		return ok
	}
}

// HasHeader matches requests carrying a non-empty header name.
func HasHeader(name string) ports.Predicate {
	key := http.CanonicalHeaderKey(name)
	return func(v domain.View) bool {
		return v.Header.Get(key) != ""
	}
}

func compact(ps []ports.Predicate) []ports.Predicate {
	out := make([]ports.Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
