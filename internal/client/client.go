// Package client provides an HTTP client whose requests run through an
// interception pipeline that is assembled once, when the client is built.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/authpipe/internal/authplugin"
	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
	"github.com/tjfontaine/authpipe/internal/pipeline"
)

// DefaultUserAgent is sent when the caller sets no User-Agent.
const DefaultUserAgent = "authpipe/1.0"

// Built-in pre-resolve stage keys.
const (
	RequestIDKey = "request-id"
	UserAgentKey = "user-agent"
)

// Client sends requests relative to a base URL through the pipeline.
type Client struct {
	base     *pipeline.BaseURLResolver
	executor *pipeline.Executor
	tx       *pipeline.HTTPTransmitter
	logger   *slog.Logger
}

type stageRegistration struct {
	stage   ports.StageType
	key     string
	handler ports.Handler
}

type options struct {
	httpClient     *http.Client
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	userAgent      string
	stages         []stageRegistration
	auth           []*authplugin.Config
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the client used for transmission.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracerProvider sets the tracer provider for pipeline and transport
// spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithStage registers an additional handler. Handlers run after the
// built-in stages and the credential plugins, in the order the options are
// given.
func WithStage(stage ports.StageType, key string, h ports.Handler) Option {
	return func(o *options) {
		o.stages = append(o.stages, stageRegistration{stage: stage, key: key, handler: h})
	}
}

// WithAuth installs a credential plugin built from cfg.
func WithAuth(cfg *authplugin.Config) Option {
	return func(o *options) { o.auth = append(o.auth, cfg) }
}

// New builds a client for baseURL. All stages are registered and the
// pipeline is frozen before New returns, so the first request already runs
// the complete pipeline.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := &options{userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	base, err := pipeline.NewBaseURLResolver(baseURL)
	if err != nil {
		return nil, err
	}

	if o.httpClient == nil {
		var transportOpts []otelhttp.Option
		if o.tracerProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithTracerProvider(o.tracerProvider))
		}
		o.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport(), transportOpts...),
		}
	}

	r := pipeline.NewRegistry()
	if err := r.Register(ports.StagePreResolve, RequestIDKey, ports.HandlerFunc(setRequestID)); err != nil {
		return nil, err
	}
	if err := r.Register(ports.StagePreResolve, UserAgentKey, userAgent(o.userAgent)); err != nil {
		return nil, err
	}
	for _, cfg := range o.auth {
		if err := authplugin.Install(r, cfg); err != nil {
			return nil, fmt.Errorf("install auth plugin: %w", err)
		}
	}
	for _, s := range o.stages {
		if err := r.Register(s.stage, s.key, s.handler); err != nil {
			return nil, fmt.Errorf("register stage %q: %w", s.key, err)
		}
	}

	executor, err := r.Build(
		pipeline.WithResolver(base),
		pipeline.WithLogger(o.logger),
		pipeline.WithTracerProvider(o.tracerProvider),
	)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("client built",
		slog.String("base_url", base.Base().String()),
		slog.Any("steps", executor.Steps()))

	return &Client{
		base:     base,
		executor: executor,
		tx:       pipeline.NewHTTPTransmitter(o.httpClient),
		logger:   o.logger,
	}, nil
}

// Request describes one call relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   io.Reader
}

// Do sends req through the pipeline.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	rc, err := domain.NewRequestContext(req.Method, req.Path, req.Body)
	if err != nil {
		return nil, err
	}
	if len(req.Query) > 0 {
		q := rc.Target().Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		if err := rc.SetQuery(q); err != nil {
			return nil, err
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			rc.Header.Add(k, v)
		}
	}
	rc.ID = RequestIDFromContext(ctx)

	return c.executor.Run(ctx, rc, c.tx)
}

// Get sends a GET for path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() *url.URL {
	return c.base.Base()
}

// Steps returns the pipeline step keys in execution order.
func (c *Client) Steps() []string {
	return c.executor.Steps()
}

// RoundTripper returns a transport running the post-resolve stages of this
// client before base. It lets the credential plugin decorate any
// *http.Client.
func (c *Client) RoundTripper(base http.RoundTripper) http.RoundTripper {
	return c.executor.RoundTripper(base)
}
