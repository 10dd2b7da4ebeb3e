package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

const tracerName = "github.com/tjfontaine/authpipe/internal/pipeline"

// ErrProceedCalledTwice is returned by a Proceed that was already used.
var ErrProceedCalledTwice = errors.New("pipeline: next called more than once")

// Executor runs registered handlers for each request. It is immutable and
// safe for concurrent use.
type Executor struct {
	steps     []step
	postStart int // index of the first post-resolve step
	resolver  ports.Resolver
	logger    *slog.Logger
	tracer    trace.Tracer
}

type step struct {
	stage   ports.StageType
	key     string
	handler ports.Handler
}

// Run sends rc through every stage in order and finally through t.
// Pre-resolve handlers run first, then the resolver fixes the URL, then
// post-resolve handlers run.
func (e *Executor) Run(ctx context.Context, rc *domain.RequestContext, t ports.Transmitter) (*http.Response, error) {
	if rc == nil {
		return nil, fmt.Errorf("pipeline: nil request context")
	}
	return e.run(ctx, rc, t, 0)
}

func (e *Executor) run(ctx context.Context, rc *domain.RequestContext, t ports.Transmitter, from int) (*http.Response, error) {
	ctx, span := e.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request.id", rc.ID),
			attribute.String("http.request.method", rc.Method),
		))
	defer span.End()

	resp, err := e.dispatch(ctx, rc, t, from)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (e *Executor) dispatch(ctx context.Context, rc *domain.RequestContext, t ports.Transmitter, i int) (*http.Response, error) {
	if i == len(e.steps) {
		trace.SpanFromContext(ctx).AddEvent("transmit")
		return t.Transmit(ctx, rc)
	}

	s := e.steps[i]
	trace.SpanFromContext(ctx).AddEvent("stage", trace.WithAttributes(
		attribute.String("stage", string(s.stage)),
		attribute.String("key", s.key),
	))
	e.logger.Debug("pipeline step",
		slog.String("request_id", rc.ID),
		slog.String("stage", string(s.stage)),
		slog.String("key", s.key))

	called := false
	next := func(ctx context.Context) (*http.Response, error) {
		if called {
			return nil, ErrProceedCalledTwice
		}
		called = true
		return e.dispatch(ctx, rc, t, i+1)
	}

	resp, err := s.handler.Handle(ctx, rc, next)
	if !called && resp == nil && err == nil {
		return nil, &ShortCircuitError{Stage: s.stage, Key: s.key}
	}
	return resp, err
}

// Steps returns the keys of all steps in execution order, including the
// built-in resolve step.
func (e *Executor) Steps() []string {
	keys := make([]string, len(e.steps))
	for i, s := range e.steps {
		keys[i] = s.key
	}
	return keys
}

// ShortCircuitError is returned when a handler stopped the pipeline without
// producing a response or an error of its own.
type ShortCircuitError struct {
	Stage ports.StageType
	Key   string
}

func (e *ShortCircuitError) Error() string {
	return fmt.Sprintf("pipeline stopped by %s at stage %s", e.Key, e.Stage)
}

// IsShortCircuit returns true if the error is a pipeline short-circuit.
func IsShortCircuit(err error) bool {
	var target *ShortCircuitError
	return errors.As(err, &target)
}

type resolveHandler struct {
	resolver ports.Resolver
}

func (h resolveHandler) Handle(ctx context.Context, rc *domain.RequestContext, next ports.Proceed) (*http.Response, error) {
	if err := h.resolver.Resolve(rc); err != nil {
		return nil, fmt.Errorf("resolve request URL: %w", err)
	}
	return next(ctx)
}
