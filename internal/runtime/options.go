package runtime

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/authpipe/internal/client"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// Option is a functional option for NewClient.
type Option func(*assembly) error

// WithCredentialSource uses src instead of the source described by the
// credentials section of the configuration.
func WithCredentialSource(src ports.CredentialSource) Option {
	return func(a *assembly) error {
		if src == nil {
			return fmt.Errorf("credential source is nil")
		}
		a.source = src
		return nil
	}
}

// WithHTTPClient sets the client used both for requests and for OAuth2 token
// requests. It replaces the default pooled transport.
func WithHTTPClient(c *http.Client) Option {
	return func(a *assembly) error {
		a.httpClient = c
		return nil
	}
}

// WithTracerProvider sets the tracer provider for pipeline spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *assembly) error {
		a.tracerProvider = tp
		return nil
	}
}

// WithStage registers an extra pipeline handler on the client.
func WithStage(stage ports.StageType, key string, h ports.Handler) Option {
	return func(a *assembly) error {
		a.stages = append(a.stages, client.WithStage(stage, key, h))
		return nil
	}
}
