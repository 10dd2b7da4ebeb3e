// Package static provides fixed credential sources.
package static

import (
	"context"
	"os"
	"strings"

	"github.com/tjfontaine/authpipe/internal/core/domain"
)

// Source returns the same token for every request.
type Source struct {
	token string
}

// New returns a source yielding token.
func New(token string) *Source {
	return &Source{token: token}
}

// FromEnv reads the environment variable name once. It fails when the
// variable is unset or blank.
func FromEnv(name string) (*Source, error) {
	token := os.Getenv(name)
	if strings.TrimSpace(token) == "" {
		return nil, &domain.ConfigurationError{Field: name, Reason: "environment variable is not set"}
	}
	return New(token), nil
}

// Credential returns the token.
func (s *Source) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.token, nil
}
