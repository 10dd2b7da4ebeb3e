// Package ports defines the core interfaces for the request pipeline.
// This file contains the stage enumeration and the handler contract.
package ports

import (
	"context"
	"net/http"

	"github.com/tjfontaine/authpipe/internal/core/domain"
)

// StageType names an extension point in request construction.
type StageType string

const (
	// StagePreResolve runs before the request URL is resolved. Handlers may
	// still change the target and query.
	StagePreResolve StageType = "pre-resolve"
	// StagePostResolve runs after the URL is final and before transmission.
	StagePostResolve StageType = "post-resolve"
)

// StageOrder returns every stage in execution order.
func StageOrder() []StageType {
	return []StageType{StagePreResolve, StagePostResolve}
}

// Valid reports whether s is a known stage.
func (s StageType) Valid() bool {
	switch s {
	case StagePreResolve, StagePostResolve:
		return true
	}
	return false
}

// Proceed hands control to the next step of the pipeline and returns what the
// rest of the pipeline produced.
type Proceed func(ctx context.Context) (*http.Response, error)

// Handler is a unit of work registered at a stage.
//
// A handler must call next at most once. Returning without calling next
// short-circuits the remaining pipeline.
type Handler interface {
	Handle(ctx context.Context, rc *domain.RequestContext, next Proceed) (*http.Response, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, rc *domain.RequestContext, next Proceed) (*http.Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, rc *domain.RequestContext, next Proceed) (*http.Response, error) {
	return f(ctx, rc, next)
}

// StageRestricted is implemented by handlers that only work at some stages.
// Registries reject registration at any other stage.
type StageRestricted interface {
	AllowedStages() []StageType
}

// Resolver fixes the final URL of a request between the pre-resolve and
// post-resolve stages.
type Resolver interface {
	Resolve(rc *domain.RequestContext) error
}

// Transmitter sends a fully processed request. It is the last step of every
// pipeline run.
type Transmitter interface {
	Transmit(ctx context.Context, rc *domain.RequestContext) (*http.Response, error)
}

// TransmitterFunc adapts a function into a Transmitter.
type TransmitterFunc func(ctx context.Context, rc *domain.RequestContext) (*http.Response, error)

// Transmit calls f.
func (f TransmitterFunc) Transmit(ctx context.Context, rc *domain.RequestContext) (*http.Response, error) {
	return f(ctx, rc)
}
