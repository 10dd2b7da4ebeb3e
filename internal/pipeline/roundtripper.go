package pipeline

import (
	"context"
	"net/http"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// RoundTripper returns an http.RoundTripper that runs the post-resolve stage
// over each outgoing request and then hands it to base. Requests reaching a
// RoundTripper already carry their final URL, so pre-resolve handlers and
// the resolver are skipped. The caller's request is never modified.
func (e *Executor) RoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{exec: e, base: base}
}

type roundTripper struct {
	exec *Executor
	base http.RoundTripper
}

// RoundTrip closes the request body itself when the request never reaches
// base, as http.RoundTripper requires.
func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rc, err := domain.FromHTTPRequest(req)
	if err != nil {
		closeBody(req)
		return nil, err
	}
	rc.ID = req.Header.Get("X-Request-ID")

	sent := false
	send := ports.TransmitterFunc(func(ctx context.Context, rc *domain.RequestContext) (*http.Response, error) {
		sent = true
		out := req.Clone(ctx)
		out.Header = rc.Header
		return rt.base.RoundTrip(out)
	})
	resp, err := rt.exec.run(req.Context(), rc, send, rt.exec.postStart)
	if !sent {
		closeBody(req)
	}
	return resp, err
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
