package pipeline

import (
	"context"
	"net/http"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// DefaultHeaders returns a pre-resolve handler that sets each header in
// headers unless the request already carries it.
func DefaultHeaders(headers map[string]string) ports.Handler {
	canonical := make(http.Header, len(headers))
	for k, v := range headers {
		canonical.Set(k, v)
	}
	return ports.HandlerFunc(func(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
		for k, vs := range canonical {
			if rc.Header.Get(k) == "" {
				rc.Header[k] = append([]string(nil), vs...)
			}
		}
		return next(ctx)
	})
}

// DefaultQuery returns a pre-resolve handler that adds each parameter in
// params to the target query unless it is already present. Predicates at the
// post-resolve stage see the merged query.
func DefaultQuery(params map[string]string) ports.Handler {
	return ports.HandlerFunc(func(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
		if len(params) == 0 {
			return next(ctx)
		}
		q := rc.Target().Query()
		changed := false
		for k, v := range params {
			if !q.Has(k) {
				q.Set(k, v)
				changed = true
			}
		}
		if changed {
			if err := rc.SetQuery(q); err != nil {
				return nil, err
			}
		}
		return next(ctx)
	})
}

// StagesFromConfig returns the default header and query handlers for the
// given settings, keyed for registration at the pre-resolve stage. Empty
// settings produce no handlers.
func StagesFromConfig(headers, query map[string]string) []Registration {
	var regs []Registration
	if len(headers) > 0 {
		regs = append(regs, Registration{Stage: ports.StagePreResolve, Key: "default-headers", Handler: DefaultHeaders(headers)})
	}
	if len(query) > 0 {
		regs = append(regs, Registration{Stage: ports.StagePreResolve, Key: "default-query", Handler: DefaultQuery(query)})
	}
	return regs
}
