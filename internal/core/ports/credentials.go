package ports

import (
	"context"

	"github.com/tjfontaine/authpipe/internal/core/domain"
)

// Predicate decides whether a credential belongs on a resolved request.
// Implementations must be pure: the same view always yields the same answer.
type Predicate func(v domain.View) bool

// CredentialSource yields the credential attached to matching requests.
// Implementations: static token, SQLite store, OAuth2 token source, caching
// decorator. Caching and refresh are the source's own concern.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// CredentialSourceFunc adapts a function into a CredentialSource.
type CredentialSourceFunc func(ctx context.Context) (string, error)

// Credential calls f.
func (f CredentialSourceFunc) Credential(ctx context.Context) (string, error) {
	return f(ctx)
}
