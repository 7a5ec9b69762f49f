package container

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MimeResolver maps a resource name to a content type. An empty result
// leaves the decision to the engine.
type MimeResolver func(name string) string

// Context is a routing context: the set of wrappers living under one
// top-level path segment of a Host.
type Context struct {
	path    string
	docBase string

	mu        sync.RWMutex
	state     State
	children  map[string]*Wrapper
	mappings  map[string]string
	listeners []LifecycleListener
	im        InstanceManager
	mime      MimeResolver
	parent    *Host
	logger    *zap.Logger
}

// NewContext creates an unstarted context for path ("/" for the root
// context) whose static files live under docBase.
func NewContext(path, docBase string) *Context {
	return &Context{
		path:     path,
		docBase:  docBase,
		state:    StateNew,
		children: make(map[string]*Wrapper),
		mappings: make(map[string]string),
		im:       DefaultInstanceManager{},
	}
}

func (c *Context) Path() string    { return c.path }
func (c *Context) DocBase() string { return c.docBase }

func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Parent returns the host the context is attached to, or nil.
func (c *Context) Parent() *Host {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

func (c *Context) setParent(h *Host) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parent = h
	if h != nil && c.logger == nil {
		c.logger = h.logger.With(zap.String("context_path", c.path))
	}
}

// SetLogger overrides the logger inherited from the host.
func (c *Context) SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l.With(zap.String("context_path", c.path))
}

func (c *Context) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// prefix is the request path prefix that selects this context.
func (c *Context) prefix() string {
	if c.path == "/" {
		return ""
	}
	return c.path
}

func (c *Context) AddLifecycleListener(l LifecycleListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Context) SetInstanceManager(im InstanceManager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.im = im
}

func (c *Context) InstanceManager() InstanceManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.im
}

func (c *Context) SetMimeResolver(m MimeResolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mime = m
}

// MimeType resolves the content type for name, consulting the bound
// resolver before the extension table.
func (c *Context) MimeType(name string) string {
	c.mu.RLock()
	m := c.mime
	c.mu.RUnlock()
	if m != nil {
		if t := m(name); t != "" {
			return t
		}
	}
	return mime.TypeByExtension(path.Ext(name))
}

// CreateWrapper returns a detached wrapper for handler. It becomes routable
// once added with AddChild and mapped with AddMapping.
func (c *Context) CreateWrapper(name string, handler http.Handler) *Wrapper {
	return newWrapper(name, handler)
}

func (c *Context) AddChild(w *Wrapper) error {
	c.mu.Lock()
	if _, ok := c.children[w.name]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrDuplicateChild, w.name, c.path)
	}
	c.children[w.name] = w
	c.mu.Unlock()

	w.setParent(c)
	return nil
}

// RemoveChild detaches w together with every mapping that targets it and
// unloads it. w is detached even when unloading fails.
func (c *Context) RemoveChild(w *Wrapper) error {
	c.mu.Lock()
	cur, ok := c.children[w.name]
	if !ok || cur != w {
		c.mu.Unlock()
		return nil
	}
	delete(c.children, w.name)
	for pattern, name := range c.mappings {
		if name == w.name {
			delete(c.mappings, pattern)
		}
	}
	c.mu.Unlock()

	w.setParent(nil)
	if err := w.Unload(); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", w.name, c.path, err)
	}
	return nil
}

func (c *Context) FindChild(name string) *Wrapper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.children[name]
}

// FindChildren returns the children ordered by name.
func (c *Context) FindChildren() []*Wrapper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Wrapper, 0, len(c.children))
	for _, w := range c.children {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// AddMapping routes pattern to the child called name. Patterns are either
// exact paths ("/status") or prefix patterns ending in "/*" ("/api/*",
// "/*").
func (c *Context) AddMapping(pattern, name string) error {
	if !validPattern(pattern) {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.children[name]; !ok {
		return fmt.Errorf("%w: %s in %s", ErrUnknownChild, name, c.path)
	}
	if _, ok := c.mappings[pattern]; ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateMapping, pattern, c.path)
	}
	c.mappings[pattern] = name
	return nil
}

func (c *Context) RemoveMapping(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.mappings, pattern)
}

// FindMapping returns the child name bound to pattern, or "".
func (c *Context) FindMapping(pattern string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mappings[pattern]
}

// FindMappings returns the mapped patterns in sorted order.
func (c *Context) FindMappings() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.mappings))
	for p := range c.mappings {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func validPattern(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasSuffix(p, "/*") {
		return !strings.Contains(strings.TrimSuffix(p, "/*"), "*")
	}
	return !strings.Contains(p, "*")
}

// Start moves a new context to StateStarted, notifying listeners around
// the transition. Starting a started context is a no-op.
func (c *Context) Start() error {
	c.mu.Lock()
	switch c.state {
	case StateStarted, StateStarting:
		c.mu.Unlock()
		return nil
	case StateStopped:
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is stopped", ErrInvalidState, c.path)
	}
	c.state = StateStarting
	c.mu.Unlock()

	c.fire(EventBeforeStart)

	c.mu.Lock()
	c.state = StateStarted
	c.mu.Unlock()

	c.fire(EventAfterStart)
	c.Logger().Debug("Started context")
	return nil
}

// Stop takes the context out of service and unloads every child. A stopped
// context cannot be restarted. Unload failures are returned joined once
// every child has been unloaded.
func (c *Context) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.fire(EventBeforeStop)

	c.mu.Lock()
	c.state = StateStopped
	children := make([]*Wrapper, 0, len(c.children))
	for _, w := range c.children {
		children = append(children, w)
	}
	c.mu.Unlock()

	var errs []error
	for _, w := range children {
		if err := w.Unload(); err != nil {
			errs = append(errs, err)
		}
	}
	c.fire(EventAfterStop)

	err := errors.Join(errs...)
	if err != nil {
		c.Logger().Warn("Stopped context with unload failures", zap.Error(err))
	} else {
		c.Logger().Debug("Stopped context", zap.Int("children", len(children)))
	}
	return err
}

func (c *Context) fire(event LifecycleEvent) {
	c.mu.RLock()
	listeners := make([]LifecycleListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l.LifecycleEvent(c, event)
	}
}

// resolve maps a context-relative path to a child, returning the servlet
// path and path info the request is dispatched with.
func (c *Context) resolve(rel string) (*Wrapper, string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if name, ok := c.mappings[rel]; ok && !strings.HasSuffix(rel, "/*") {
		return c.children[name], rel, ""
	}

	best, bestLen := "", -1
	for pattern, name := range c.mappings {
		if !strings.HasSuffix(pattern, "/*") {
			continue
		}
		p := strings.TrimSuffix(pattern, "/*")
		if len(p) <= bestLen {
			continue
		}
		if p == "" || rel == p || strings.HasPrefix(rel, p+"/") {
			best, bestLen = name, len(p)
		}
	}
	if bestLen >= 0 {
		return c.children[best], rel[:bestLen], rel[bestLen:]
	}

	if w, ok := c.children[DefaultServletName]; ok {
		return w, rel, ""
	}
	return nil, "", ""
}

func (c *Context) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c.State() != StateStarted {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, c.prefix())
	if rel == "" {
		rel = "/"
	}
	wrapper, servletPath, pathInfo := c.resolve(rel)
	if wrapper == nil {
		http.NotFound(w, r)
		return
	}
	wrapper.ServeHTTP(w, withRequestInfo(r, requestInfo{
		contextPath: c.prefix(),
		servletPath: servletPath,
		pathInfo:    pathInfo,
	}))
}
