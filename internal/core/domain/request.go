// Package domain provides the core request and error types shared by the
// pipeline, the predicates and the interception plugin.
package domain

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// RequestContext is the mutable, in-flight representation of one outgoing
// request. Each request owns its own context; nothing in it is shared.
//
// The target may be changed until Resolve is called. After that the URL is
// final and only headers remain mutable.
type RequestContext struct {
	// ID identifies the request for logs and tracing.
	ID string
	// Method is the HTTP method.
	Method string
	// Header holds the headers that will be transmitted.
	Header http.Header
	// Body is the request body handle. It may be nil.
	Body io.Reader

	target *url.URL
	final  *url.URL
}

// NewRequestContext creates an unresolved context for target, which may be
// relative (resolved later against a base URL) or absolute.
func NewRequestContext(method, target string, body io.Reader) (*RequestContext, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target %q: %w", target, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &RequestContext{
		Method: method,
		Header: make(http.Header),
		Body:   body,
		target: ref,
	}, nil
}

// FromHTTPRequest creates an already resolved context from a request whose
// URL is final. The header map is cloned so the caller's request is never
// mutated.
func FromHTTPRequest(req *http.Request) (*RequestContext, error) {
	if req.URL == nil || !req.URL.IsAbs() {
		return nil, fmt.Errorf("request URL must be absolute: %w", ErrNotResolved)
	}
	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	u := *req.URL
	return &RequestContext{
		Method: req.Method,
		Header: header,
		Body:   req.Body,
		target: &u,
		final:  normalize(&u),
	}, nil
}

// Target returns a copy of the unresolved target reference.
func (rc *RequestContext) Target() *url.URL {
	u := *rc.target
	return &u
}

// SetTarget replaces the target reference. It fails once the URL is final.
func (rc *RequestContext) SetTarget(target string) error {
	if rc.final != nil {
		return ErrURLFinal
	}
	ref, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parse target %q: %w", target, err)
	}
	rc.target = ref
	return nil
}

// SetQuery replaces the query of the target reference. It fails once the URL
// is final.
func (rc *RequestContext) SetQuery(q url.Values) error {
	if rc.final != nil {
		return ErrURLFinal
	}
	rc.target.RawQuery = q.Encode()
	return nil
}

// Resolve fixes the final URL by resolving the target against base. It may
// only be called once.
func (rc *RequestContext) Resolve(base *url.URL) error {
	if rc.final != nil {
		return ErrURLFinal
	}
	var u *url.URL
	switch {
	case rc.target.IsAbs():
		u = rc.Target()
	case base == nil:
		return fmt.Errorf("relative target %q without base URL: %w", rc.target, ErrNotResolved)
	default:
		u = base.ResolveReference(rc.target)
	}
	if u.Host == "" {
		return fmt.Errorf("resolved URL %q has no host: %w", u, ErrNotResolved)
	}
	rc.final = normalize(u)
	return nil
}

// Resolved reports whether the URL is final.
func (rc *RequestContext) Resolved() bool {
	return rc.final != nil
}

// URL returns a copy of the final URL, or nil before resolution.
func (rc *RequestContext) URL() *url.URL {
	if rc.final == nil {
		return nil
	}
	u := *rc.final
	return &u
}

// View returns an immutable snapshot of the request. Before resolution the
// URL fields hold zero values.
func (rc *RequestContext) View() View {
	v := View{
		Method: rc.Method,
		Header: rc.Header.Clone(),
	}
	if rc.final == nil {
		return v
	}
	v.Resolved = true
	v.Host = rc.final.Host
	v.Path = rc.final.Path
	v.RawPath = rc.final.EscapedPath()
	v.RawQuery = rc.final.RawQuery
	v.Query = rc.final.Query()
	return v
}

func normalize(u *url.URL) *url.URL {
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u
}

// View is a read-only snapshot of a request handed to predicates.
type View struct {
	Method string
	Host   string
	// Path is the percent-decoded path.
	Path string
	// RawPath is the escaped form of Path.
	RawPath  string
	RawQuery string
	Query    url.Values
	Header   http.Header
	Resolved bool
}
