package container

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Host owns the routing contexts of one virtual host and dispatches
// requests to them by first path segment.
type Host struct {
	name   string
	logger *zap.Logger

	mu       sync.RWMutex
	children map[string]*Context
	started  bool
	stopped  bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger the host and its contexts report lifecycle
// and teardown problems to.
func WithLogger(l *zap.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHost(name string, opts ...HostOption) *Host {
	h := &Host{
		name:     name,
		logger:   zap.NewNop(),
		children: make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("container").With(zap.String("host", name))
	return h
}

func (h *Host) Name() string { return h.name }

// AddChild attaches ctx. On a started host the context is started before
// AddChild returns; if that fails the context is detached again.
func (h *Host) AddChild(ctx *Context) error {
	h.mu.Lock()
	if _, ok := h.children[ctx.path]; ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateChild, ctx.path)
	}
	h.children[ctx.path] = ctx
	started := h.started
	h.mu.Unlock()

	ctx.setParent(h)
	if !started {
		return nil
	}
	if err := ctx.Start(); err != nil {
		h.mu.Lock()
		delete(h.children, ctx.path)
		h.mu.Unlock()
		ctx.setParent(nil)
		return err
	}
	return nil
}

// RemoveChild detaches and stops ctx. The context is detached even when
// stopping it reports an error.
func (h *Host) RemoveChild(ctx *Context) error {
	h.mu.Lock()
	cur, ok := h.children[ctx.path]
	if !ok || cur != ctx {
		h.mu.Unlock()
		return nil
	}
	delete(h.children, ctx.path)
	h.mu.Unlock()

	err := ctx.Stop()
	ctx.setParent(nil)
	return err
}

func (h *Host) FindChild(path string) *Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.children[path]
}

// FindChildren returns the attached contexts ordered by path.
func (h *Host) FindChildren() []*Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Context, 0, len(h.children))
	for _, c := range h.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// Start starts every attached context. Contexts added later are started on
// attach. A host that has been stopped cannot be started again.
func (h *Host) Start() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return fmt.Errorf("%w: host %s is stopped", ErrInvalidState, h.name)
	}
	h.started = true
	h.mu.Unlock()

	for _, c := range h.FindChildren() {
		if err := c.Start(); err != nil {
			return err
		}
	}
	h.logger.Info("Started host")
	return nil
}

// Stop stops every attached context and returns their failures joined.
// Stopped contexts stay attached and keep answering 503, and neither they
// nor the host can be started again: build a new Host to serve again.
func (h *Host) Stop() error {
	h.mu.Lock()
	h.started = false
	h.stopped = true
	h.mu.Unlock()

	var errs []error
	for _, c := range h.FindChildren() {
		if err := c.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		h.logger.Error("Stopped host with errors", zap.Error(err))
	} else {
		h.logger.Info("Stopped host")
	}
	return err
}

// Map returns the context serving requestPath.
func (h *Host) Map(requestPath string) *Context {
	first := requestPath
	if i := strings.IndexByte(requestPath[min(1, len(requestPath)):], '/'); i >= 0 {
		first = requestPath[:i+1]
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if first != "" && first != "/" {
		if c, ok := h.children[first]; ok {
			return c
		}
	}
	return h.children["/"]
}

// ServeHTTP rejects request paths that are not in canonical form, so no
// dot segment or doubled slash ever reaches a context.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !canonicalPath(r.URL.Path) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := h.Map(r.URL.Path)
	if ctx == nil {
		http.NotFound(w, r)
		return
	}
	ctx.ServeHTTP(w, r)
}

// canonicalPath reports whether p is absolute and unchanged by path.Clean,
// ignoring a single trailing slash.
func canonicalPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	clean := path.Clean(p)
	if clean != "/" && strings.HasSuffix(p, "/") {
		clean += "/"
	}
	return clean == p
}
