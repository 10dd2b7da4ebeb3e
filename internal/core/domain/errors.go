package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrURLFinal is returned when a resolved URL would be modified.
	ErrURLFinal = errors.New("request URL is already resolved")

	// ErrNotResolved is returned when a resolved URL is required but absent.
	ErrNotResolved = errors.New("request URL is not resolved")

	// ErrEmptyCredential is returned when a source yields an empty credential.
	ErrEmptyCredential = errors.New("credential source returned an empty credential")

	// ErrMalformedCredential is returned when a credential contains bytes
	// that are not allowed in a header value.
	ErrMalformedCredential = errors.New("credential is not a valid header value")
)

// ConfigurationError reports a missing or invalid setting detected while a
// client is being built. It never occurs while requests are in flight.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// MisplacedInterceptionError is returned when a handler is registered at a
// stage where it cannot work, or runs before the URL is final.
type MisplacedInterceptionError struct {
	Key     string
	Stage   string
	Allowed []string
}

func (e *MisplacedInterceptionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("handler %q cannot run at stage %q", e.Key, e.Stage)
	}
	return fmt.Sprintf("handler %q cannot run at stage %q (allowed: %s)",
		e.Key, e.Stage, strings.Join(e.Allowed, ", "))
}

// DuplicateInstallationError is returned when a key is registered twice on
// the same pipeline.
type DuplicateInstallationError struct {
	Key   string
	Stage string
}

func (e *DuplicateInstallationError) Error() string {
	return fmt.Sprintf("handler %q is already installed at stage %q", e.Key, e.Stage)
}

// CredentialFetchError reports a credential source failure for one request.
// The request it belongs to is not transmitted.
type CredentialFetchError struct {
	Key    string
	Method string
	Path   string
	Err    error
}

func (e *CredentialFetchError) Error() string {
	return fmt.Sprintf("%s: fetch credential for %s %s: %v", e.Key, e.Method, e.Path, e.Err)
}

func (e *CredentialFetchError) Unwrap() error {
	return e.Err
}

// IsCredentialFetch reports whether err is or wraps a CredentialFetchError.
func IsCredentialFetch(err error) bool {
	var target *CredentialFetchError
	return errors.As(err, &target)
}
