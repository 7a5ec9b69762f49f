package httpservice

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/container"
)

// Host is the part of the engine the registry drives.
type Host interface {
	AddChild(ctx *container.Context) error
	RemoveChild(ctx *container.Context) error
	FindChild(path string) *container.Context
}

// routingContext is an engine context created by the registry, together
// with the scratch directory it owns.
type routingContext struct {
	path          string
	ctx           *container.Context
	scratch       string
	createdBy     string
	createdAt     time.Time
	registrations int
}

// contextRegistry tracks the contexts the registry created. It is not
// synchronised: every call happens under Registry.mu.
type contextRegistry struct {
	host     Host
	workDir  string
	config   container.ContextConfig
	im       container.InstanceManager
	contexts map[string]*routingContext
	logger   *zap.Logger
	now      func() time.Time
}

func newContextRegistry(host Host, cfg Config, im container.InstanceManager, logger *zap.Logger, now func() time.Time) *contextRegistry {
	return &contextRegistry{
		host:    host,
		workDir: cfg.WorkDir,
		config: container.ContextConfig{
			ServeDocBase: cfg.ServeDocBase,
			Extra:        cfg.ImplicitHandlers,
		},
		im:       im,
		contexts: make(map[string]*routingContext),
		logger:   logger,
		now:      now,
	}
}

// lookup returns the registry-managed context at path, nil if the host has
// none, or ErrWrongContextKind if the host's context there belongs to
// someone else.
func (cr *contextRegistry) lookup(path string) (*routingContext, error) {
	if rc, ok := cr.contexts[path]; ok {
		return rc, nil
	}
	if cr.host.FindChild(path) != nil {
		return nil, fmt.Errorf("%w: %s", ErrWrongContextKind, path)
	}
	return nil, nil
}

// getOrCreate returns the context at path, creating and attaching it when
// absent. The MIME resolver of the creating caller stays bound to the
// context for its whole life.
func (cr *contextRegistry) getOrCreate(path, owner string, mime container.MimeResolver) (*routingContext, bool, error) {
	rc, err := cr.lookup(path)
	if err != nil {
		return nil, false, err
	}
	if rc != nil {
		return rc, false, nil
	}

	scratch, err := os.MkdirTemp(cr.workDir, scratchPattern(path))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create work directory for %s: %w", path, err)
	}

	ctx := container.NewContext(path, scratch)
	ctx.AddLifecycleListener(cr.config)
	ctx.SetInstanceManager(cr.im)
	if mime != nil {
		ctx.SetMimeResolver(mime)
	}

	if err := cr.host.AddChild(ctx); err != nil {
		cr.removeScratch(path, scratch)
		return nil, false, fmt.Errorf("failed to attach context %s: %w", path, err)
	}

	rc = &routingContext{
		path:      path,
		ctx:       ctx,
		scratch:   scratch,
		createdBy: owner,
		createdAt: cr.now(),
	}
	cr.contexts[path] = rc

	cr.logger.Debug("Created routing context",
		zap.String("context_path", path),
		zap.String("work_dir", scratch),
		zap.String("owner", owner))

	return rc, true, nil
}

// destroyIfEmpty tears rc down once no caller handler is left on it. It
// reports whether the context was destroyed.
func (cr *contextRegistry) destroyIfEmpty(rc *routingContext) bool {
	if rc.registrations > 0 {
		return false
	}
	for _, w := range rc.ctx.FindChildren() {
		if !w.Implicit() {
			return false
		}
	}

	if err := cr.host.RemoveChild(rc.ctx); err != nil {
		cr.logger.Warn("Routing context stopped with errors",
			zap.String("context_path", rc.path),
			zap.Error(err))
	}
	cr.removeScratch(rc.path, rc.scratch)
	delete(cr.contexts, rc.path)

	cr.logger.Debug("Destroyed routing context", zap.String("context_path", rc.path))
	return true
}

func (cr *contextRegistry) removeScratch(path, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		cr.logger.Warn("Failed to remove work directory",
			zap.String("context_path", path),
			zap.String("work_dir", dir),
			zap.Error(err))
	}
}

func (cr *contextRegistry) len() int { return len(cr.contexts) }

// sorted returns the managed contexts ordered by path.
func (cr *contextRegistry) sorted() []*routingContext {
	out := make([]*routingContext, 0, len(cr.contexts))
	for _, rc := range cr.contexts {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

func scratchPattern(path string) string {
	name := strings.Trim(strings.ReplaceAll(path, "/", "_"), "_")
	if name == "" {
		name = "ROOT"
	}
	return "ctx-" + name + "-"
}

// ContextInfo is a read-only view of a registry-managed context.
type ContextInfo struct {
	Path          string    `json:"path"`
	WorkDir       string    `json:"work_dir"`
	State         string    `json:"state"`
	Handlers      []string  `json:"handlers"`
	Mappings      []string  `json:"mappings"`
	Registrations int       `json:"registrations"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

func (rc *routingContext) info() ContextInfo {
	children := rc.ctx.FindChildren()
	handlers := make([]string, 0, len(children))
	for _, w := range children {
		handlers = append(handlers, w.Name())
	}
	return ContextInfo{
		Path:          rc.path,
		WorkDir:       rc.scratch,
		State:         rc.ctx.State().String(),
		Handlers:      handlers,
		Mappings:      rc.ctx.FindMappings(),
		Registrations: rc.registrations,
		CreatedBy:     rc.createdBy,
		CreatedAt:     rc.createdAt,
	}
}

// instanceManager reports a panicking Init or Destroy as an error.
type instanceManager struct {
	container.DefaultInstanceManager
}

func (im instanceManager) NewInstance(h http.Handler, cfg container.ServletConfig) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during init: %v", p)
		}
	}()
	return im.DefaultInstanceManager.NewInstance(h, cfg)
}

func (im instanceManager) DestroyInstance(h http.Handler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during destroy: %v", p)
		}
	}()
	return im.DefaultInstanceManager.DestroyInstance(h)
}
