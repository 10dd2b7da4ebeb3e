package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a context whose requests are sent with id instead of
// a generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID set by WithRequestID, or an
// empty string.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// setRequestID assigns a request ID if none was given and sends it as
// X-Request-ID.
func setRequestID(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}
	rc.Header.Set("X-Request-ID", rc.ID)
	return next(ctx)
}

// userAgent sets the User-Agent header unless the caller already did.
func userAgent(ua string) ports.HandlerFunc {
	return func(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
		if ua != "" && rc.Header.Get("User-Agent") == "" {
			rc.Header.Set("User-Agent", ua)
		}
		return next(ctx)
	}
}
