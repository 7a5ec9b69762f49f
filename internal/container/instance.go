package container

import (
	"net/http"
	"sort"
)

// Initializer is implemented by handlers that need one-time setup before
// serving their first request.
type Initializer interface {
	Init(cfg ServletConfig) error
}

// Destroyer is implemented by handlers that release resources when they are
// taken out of service.
type Destroyer interface {
	Destroy()
}

// ServletConfig is handed to a handler's Init method.
type ServletConfig struct {
	name   string
	params map[string]string
	ctx    *Context
}

// Name returns the wrapper name.
func (c ServletConfig) Name() string { return c.name }

// InitParameter returns the named init parameter, or "".
func (c ServletConfig) InitParameter(name string) string { return c.params[name] }

// InitParameterNames returns the init parameter names in sorted order.
func (c ServletConfig) InitParameterNames() []string {
	names := make([]string, 0, len(c.params))
	for k := range c.params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Context returns the context the handler is deployed in. It may be nil
// when the wrapper was detached before initialisation.
func (c ServletConfig) Context() *Context { return c.ctx }

// InstanceManager creates and destroys handler instances on behalf of a
// Context.
type InstanceManager interface {
	NewInstance(h http.Handler, cfg ServletConfig) error
	DestroyInstance(h http.Handler) error
}

// DefaultInstanceManager runs the optional Initializer and Destroyer hooks.
type DefaultInstanceManager struct{}

func (DefaultInstanceManager) NewInstance(h http.Handler, cfg ServletConfig) error {
	if i, ok := h.(Initializer); ok {
		return i.Init(cfg)
	}
	return nil
}

func (DefaultInstanceManager) DestroyInstance(h http.Handler) error {
	if d, ok := h.(Destroyer); ok {
		d.Destroy()
	}
	return nil
}
