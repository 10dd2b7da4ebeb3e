package pipeline

import (
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/authpipe/internal/core/domain"
	"github.com/tjfontaine/authpipe/internal/core/ports"
)

// ResolveKey is the reserved key of the built-in resolve step.
const ResolveKey = "resolve"

// ErrRegistryFrozen is returned when a handler is registered after Build.
var ErrRegistryFrozen = errors.New("pipeline registry is frozen")

// Registration is one handler registered at a stage.
type Registration struct {
	Stage   ports.StageType
	Key     string
	Handler ports.Handler
}

// Registry collects stage handlers while a client is being constructed.
// Once Build is called it is frozen and further registrations fail.
type Registry struct {
	mu     sync.Mutex
	stages map[ports.StageType][]Registration
	keys   map[string]ports.StageType
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[ports.StageType][]Registration),
		keys:   make(map[string]ports.StageType),
	}
}

// Register appends h to stage under key. Handlers at the same stage run in
// registration order. Keys are unique across all stages.
func (r *Registry) Register(stage ports.StageType, key string, h ports.Handler) error {
	if !stage.Valid() {
		return &domain.ConfigurationError{Field: "stage", Reason: "unknown stage " + string(stage)}
	}
	if key == "" {
		return &domain.ConfigurationError{Field: "key", Reason: "handler key is required"}
	}
	if key == ResolveKey {
		return &domain.ConfigurationError{Field: "key", Reason: "key " + ResolveKey + " is reserved"}
	}
	if h == nil {
		return &domain.ConfigurationError{Field: "handler", Reason: "handler for " + key + " is nil"}
	}

	if restricted, ok := h.(ports.StageRestricted); ok {
		allowed := restricted.AllowedStages()
		if !containsStage(allowed, stage) {
			names := make([]string, len(allowed))
			for i, s := range allowed {
				names[i] = string(s)
			}
			return &domain.MisplacedInterceptionError{Key: key, Stage: string(stage), Allowed: names}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if existing, ok := r.keys[key]; ok {
		return &domain.DuplicateInstallationError{Key: key, Stage: string(existing)}
	}

	r.keys[key] = stage
	r.stages[stage] = append(r.stages[stage], Registration{Stage: stage, Key: key, Handler: h})
	return nil
}

// Registrations returns the registered handlers in execution order.
func (r *Registry) Registrations() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Registration
	for _, stage := range ports.StageOrder() {
		out = append(out, r.stages[stage]...)
	}
	return out
}

// Option configures an Executor.
type Option func(*Executor)

// WithResolver sets the resolver run between the stages. Without one the
// request target must already be absolute.
func WithResolver(res ports.Resolver) Option {
	return func(e *Executor) {
		if res != nil {
			e.resolver = res
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracerProvider sets the tracer provider used for pipeline spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// Build freezes the registry and returns an immutable executor. It may be
// called once.
func (r *Registry) Build(opts ...Option) (*Executor, error) {
	r.mu.Lock()
	if r.frozen {
		r.mu.Unlock()
		return nil, ErrRegistryFrozen
	}
	r.frozen = true
	pre := append([]Registration(nil), r.stages[ports.StagePreResolve]...)
	post := append([]Registration(nil), r.stages[ports.StagePostResolve]...)
	r.mu.Unlock()

	e := &Executor{
		resolver: AbsoluteResolver{},
		logger:   slog.Default(),
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.steps = make([]step, 0, len(pre)+len(post)+1)
	for _, reg := range pre {
		e.steps = append(e.steps, step{stage: reg.Stage, key: reg.Key, handler: reg.Handler})
	}
	e.steps = append(e.steps, step{
		stage:   ports.StagePreResolve,
		key:     ResolveKey,
		handler: resolveHandler{resolver: e.resolver},
	})
	e.postStart = len(e.steps)
	for _, reg := range post {
		e.steps = append(e.steps, step{stage: reg.Stage, key: reg.Key, handler: reg.Handler})
	}
	return e, nil
}

func containsStage(stages []ports.StageType, s ports.StageType) bool {
	for _, candidate := range stages {
		if candidate == s {
			return true
		}
	}
	return false
}
