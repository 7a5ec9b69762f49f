package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/alias"
	"github.com/sirosfoundation/go-httpservice/internal/container"
)

const tracerName = "github.com/sirosfoundation/go-httpservice/internal/httpservice"

// Kind tells servlet registrations from resource registrations.
type Kind string

const (
	KindServlet  Kind = "servlet"
	KindResource Kind = "resource"
)

// Config holds the registry settings.
type Config struct {
	// WorkDir is where per-context scratch directories are created. Empty
	// means the OS temp dir.
	WorkDir string

	// ServeDocBase lets the implicit default handler of each context serve
	// files from its scratch directory.
	ServeDocBase bool

	// ImplicitHandlers are installed next to "default" in every context the
	// registry creates.
	ImplicitHandlers map[string]http.Handler
}

// Registration is a snapshot of one live alias registration.
type Registration struct {
	ID          string            `json:"id"`
	Alias       string            `json:"alias"`
	ContextPath string            `json:"context_path"`
	ServletPath string            `json:"servlet_path"`
	Kind        Kind              `json:"kind"`
	Owner       string            `json:"owner"`
	InitParams  map[string]string `json:"init_params,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Endpoint is a published URL of a registration.
type Endpoint struct {
	URL        string   `json:"url"`
	Alias      string   `json:"alias"`
	Owner      string   `json:"owner"`
	Categories []string `json:"categories"`
}

type entry struct {
	Registration
	rc      *routingContext
	wrapper *container.Wrapper
}

func (e *entry) snapshot() Registration {
	r := e.Registration
	if e.InitParams != nil {
		r.InitParams = make(map[string]string, len(e.InitParams))
		for k, v := range e.InitParams {
			r.InitParams[k] = v
		}
	}
	return r
}

// Registry maps caller-chosen aliases onto routing contexts of a shared
// Host. One mutex serialises every mutation and every read of the
// registration table and of the contexts it manages.
type Registry struct {
	mu       sync.Mutex
	contexts *contextRegistry
	entries  []*entry
	byAlias  map[string]*entry

	lmu       sync.RWMutex
	listeners []Listener

	metrics *Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records registry activity in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) { r.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry driving host.
func New(host Host, cfg Config, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		byAlias: make(map[string]*entry),
		tracer:  otel.Tracer(tracerName),
		logger:  logger.Named("httpservice"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	im := instanceManager{}
	r.contexts = newContextRegistry(host, cfg, im, r.logger, r.now)
	return r
}

type registerOptions struct {
	kind Kind
	mime container.MimeResolver
}

// RegisterOption tunes a single Register call.
type RegisterOption func(*registerOptions)

// AsKind records the registration kind. The default is KindServlet.
func AsKind(k Kind) RegisterOption {
	return func(o *registerOptions) { o.kind = k }
}

// WithMimeResolver binds m to the routing context if this registration
// creates it.
func WithMimeResolver(m container.MimeResolver) RegisterOption {
	return func(o *registerOptions) { o.mime = m }
}

// Subscribe adds l to the listeners notified of committed changes.
func (r *Registry) Subscribe(l Listener) {
	r.lmu.Lock()
	defer r.lmu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	r.lmu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.lmu.RUnlock()

	for _, e := range events {
		for _, l := range listeners {
			l.HandleEvent(e)
		}
	}
}

// Register routes alias to handler on behalf of owner. The handler's
// optional Init runs once before Register returns; security, when non-nil,
// screens every request ahead of it.
func (r *Registry) Register(ctx context.Context, owner, aliasPath string, handler http.Handler, initParams map[string]string, security SecurityFunc, opts ...RegisterOption) (*Registration, error) {
	o := registerOptions{kind: KindServlet}
	for _, opt := range opts {
		opt(&o)
	}

	_, span := r.tracer.Start(ctx, "httpservice.register",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("httpservice.alias", aliasPath),
			attribute.String("httpservice.owner", owner),
			attribute.String("httpservice.kind", string(o.kind)),
		),
	)
	defer span.End()

	reg, events, err := r.register(owner, aliasPath, handler, initParams, security, o)
	r.finish(span, "register", err)
	if err != nil {
		r.logger.Warn("Failed to register alias",
			zap.String("alias", aliasPath),
			zap.String("owner", owner),
			zap.Error(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("httpservice.context_path", reg.ContextPath),
		attribute.String("httpservice.registration_id", reg.ID),
	)

	r.logger.Info("Registered alias",
		zap.String("alias", reg.Alias),
		zap.String("owner", owner),
		zap.String("kind", string(reg.Kind)),
		zap.String("registration_id", reg.ID))

	r.dispatch(events)
	return reg, nil
}

func (r *Registry) register(owner, aliasPath string, handler http.Handler, initParams map[string]string, security SecurityFunc, o registerOptions) (*Registration, []Event, error) {
	p, err := alias.Parse(aliasPath)
	if err != nil {
		return nil, nil, err
	}
	if handler == nil {
		return nil, nil, fmt.Errorf("%w: %s: nil handler", ErrHandlerInitFailed, aliasPath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var events []Event
	rc, created, err := r.contexts.getOrCreate(p.ContextPath, owner, o.mime)
	if err != nil {
		return nil, nil, err
	}
	now := r.now()
	if created {
		events = append(events, Event{Type: EventContextCreated, ContextPath: rc.path, Owner: owner, Time: now})
	}

	fail := func(err error) (*Registration, []Event, error) {
		if created {
			r.contexts.destroyIfEmpty(rc)
		}
		return nil, nil, err
	}

	if _, dup := r.byAlias[aliasPath]; dup {
		return fail(fmt.Errorf("%w: %s", ErrDuplicatePath, aliasPath))
	}

	w, err := attach(rc, aliasPath, p.ServletPath, handler, initParams, owner, security, r.metrics)
	if err != nil {
		return fail(err)
	}

	var params map[string]string
	if len(initParams) > 0 {
		params = make(map[string]string, len(initParams))
		for k, v := range initParams {
			params[k] = v
		}
	}
	e := &entry{
		Registration: Registration{
			ID:          uuid.New().String(),
			Alias:       aliasPath,
			ContextPath: p.ContextPath,
			ServletPath: p.ServletPath,
			Kind:        o.kind,
			Owner:       owner,
			InitParams:  params,
			CreatedAt:   now,
		},
		rc:      rc,
		wrapper: w,
	}
	rc.registrations++
	r.entries = append(r.entries, e)
	r.byAlias[aliasPath] = e
	r.metrics.setSizes(len(r.entries), r.contexts.len())

	events = append(events, Event{
		Type:           EventRegistered,
		Alias:          aliasPath,
		ContextPath:    p.ContextPath,
		Owner:          owner,
		Kind:           o.kind,
		RegistrationID: e.ID,
		Time:           now,
	})

	reg := e.snapshot()
	return &reg, events, nil
}

// Unregister withdraws alias. Only the owner that registered an alias can
// withdraw it; for anyone else it is reported as not registered.
func (r *Registry) Unregister(ctx context.Context, owner, aliasPath string) error {
	_, span := r.tracer.Start(ctx, "httpservice.unregister",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("httpservice.alias", aliasPath),
			attribute.String("httpservice.owner", owner),
		),
	)
	defer span.End()

	r.mu.Lock()
	e, ok := r.byAlias[aliasPath]
	if !ok || e.Owner != owner {
		r.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrNotRegistered, aliasPath)
		r.finish(span, "unregister", err)
		return err
	}
	events, err := r.remove(e)
	r.mu.Unlock()

	r.finish(span, "unregister", err)
	if err != nil {
		r.logger.Warn("Unregistered alias with teardown failure",
			zap.String("alias", aliasPath),
			zap.String("owner", owner),
			zap.Error(err))
	} else {
		r.logger.Info("Unregistered alias",
			zap.String("alias", aliasPath),
			zap.String("owner", owner))
	}

	r.dispatch(events)
	return err
}

// UnregisterAll withdraws every alias owned by owner under a single lock
// acquisition. It keeps going past failures and returns them joined.
func (r *Registry) UnregisterAll(ctx context.Context, owner string) error {
	_, span := r.tracer.Start(ctx, "httpservice.unregister_all",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("httpservice.owner", owner)),
	)
	defer span.End()

	var (
		events []Event
		errs   []error
		count  int
	)

	r.mu.Lock()
	owned := make([]*entry, 0)
	for _, e := range r.entries {
		if e.Owner == owner {
			owned = append(owned, e)
		}
	}
	for _, e := range owned {
		evs, err := r.removeSafely(e)
		if err != nil {
			errs = append(errs, err)
		}
		if _, live := r.byAlias[e.Alias]; !live {
			count++
		}
		events = append(events, evs...)
	}
	r.mu.Unlock()

	err := errors.Join(errs...)
	span.SetAttributes(attribute.Int("httpservice.removed", count))
	r.finish(span, "unregister_all", err)

	if err != nil {
		r.logger.Warn("Failed to unregister some aliases",
			zap.String("owner", owner),
			zap.Int("removed", count),
			zap.Error(err))
	} else if count > 0 {
		r.logger.Info("Unregistered all aliases",
			zap.String("owner", owner),
			zap.Int("removed", count))
	}

	r.dispatch(events)
	return err
}

// removeSafely reports a panic raised while tearing e down as an error.
func (r *Registry) removeSafely(e *entry) (events []Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("failed to unregister %s: %v", e.Alias, p)
		}
	}()
	return r.remove(e)
}

// remove must be called with r.mu held. The handler is detached before the
// table changes; a teardown error still withdraws the alias and is returned
// with the events.
func (r *Registry) remove(e *entry) ([]Event, error) {
	now := r.now()

	err := detach(e.rc, e.ServletPath, e.wrapper)
	if err != nil {
		err = fmt.Errorf("failed to unregister %s: %w", e.Alias, err)
	}

	delete(r.byAlias, e.Alias)
	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	e.rc.registrations--

	events := []Event{{
		Type:           EventUnregistered,
		Alias:          e.Alias,
		ContextPath:    e.ContextPath,
		Owner:          e.Owner,
		Kind:           e.Kind,
		RegistrationID: e.ID,
		Time:           now,
	}}
	if r.contexts.destroyIfEmpty(e.rc) {
		events = append(events, Event{Type: EventContextDestroyed, ContextPath: e.ContextPath, Owner: e.Owner, Time: now})
	}
	r.metrics.setSizes(len(r.entries), r.contexts.len())
	return events, err
}

// GetContext returns the registry-managed context at contextPath. It fails
// with ErrWrongContextKind when the host has a context there that the
// registry did not create.
func (r *Registry) GetContext(contextPath string) (ContextInfo, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rc, err := r.contexts.lookup(contextPath)
	if err != nil {
		return ContextInfo{}, false, err
	}
	if rc == nil {
		return ContextInfo{}, false, nil
	}
	return rc.info(), true, nil
}

// Lookup returns the live registration for alias.
func (r *Registry) Lookup(aliasPath string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byAlias[aliasPath]
	if !ok {
		return Registration{}, false
	}
	return e.snapshot(), true
}

// Registrations returns the live registrations in the order they were made.
func (r *Registry) Registrations() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.snapshot())
	}
	return out
}

// Contexts returns the registry-managed contexts ordered by path.
func (r *Registry) Contexts() []ContextInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.contexts.sorted()
	out := make([]ContextInfo, 0, len(sorted))
	for _, rc := range sorted {
		out = append(out, rc.info())
	}
	return out
}

// Endpoints lists the public URL of every registration under baseURL.
func (r *Registry) Endpoints(baseURL string) []Endpoint {
	base := strings.TrimSuffix(baseURL, "/")
	regs := r.Registrations()
	out := make([]Endpoint, 0, len(regs))
	for _, reg := range regs {
		out = append(out, Endpoint{
			URL:        base + reg.Alias,
			Alias:      reg.Alias,
			Owner:      reg.Owner,
			Categories: []string{"httpservice", string(reg.Kind)},
		})
	}
	return out
}

func (r *Registry) finish(span trace.Span, op string, err error) {
	r.metrics.operation(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidAlias):
		return "invalid_alias"
	case errors.Is(err, ErrDuplicatePath):
		return "duplicate_path"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrWrongContextKind):
		return "wrong_context_kind"
	case errors.Is(err, ErrHandlerInitFailed):
		return "handler_init_failed"
	default:
		return "error"
	}
}
