package container

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// Wrapper is a named handler attached to a Context.
type Wrapper struct {
	name     string
	handler  http.Handler
	implicit bool
	pipeline Pipeline

	mu          sync.Mutex
	params      map[string]string
	owner       string
	parent      *Context
	im          InstanceManager
	logger      *zap.Logger
	initialized bool
	allocated   int
	unloading   bool
	destroyed   bool
}

func newWrapper(name string, handler http.Handler) *Wrapper {
	return &Wrapper{
		name:    name,
		handler: handler,
		params:  make(map[string]string),
		logger:  zap.NewNop(),
	}
}

func (w *Wrapper) Name() string          { return w.name }
func (w *Wrapper) Handler() http.Handler { return w.handler }
func (w *Wrapper) Pipeline() *Pipeline   { return &w.pipeline }

// Implicit reports whether the container installed this wrapper itself
// rather than on behalf of a caller.
func (w *Wrapper) Implicit() bool { return w.implicit }

// AddInitParameter sets an init parameter passed to the handler's Init.
func (w *Wrapper) AddInitParameter(name, value string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.params[name] = value
}

// InitParameters returns a copy of the init parameters.
func (w *Wrapper) InitParameters() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.params))
	for k, v := range w.params {
		out[k] = v
	}
	return out
}

// SetOwner records the caller on whose behalf the wrapper was created.
func (w *Wrapper) SetOwner(owner string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.owner = owner
}

func (w *Wrapper) Owner() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.owner
}

// Parent returns the context the wrapper is attached to, or nil.
func (w *Wrapper) Parent() *Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parent
}

func (w *Wrapper) setParent(c *Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.parent = c
}

// Available reports whether the wrapper still accepts allocations.
func (w *Wrapper) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.unloading
}

// Allocate hands out the handler instance, initialising it through the
// parent's InstanceManager on first use. Every successful Allocate must be
// paired with Deallocate.
func (w *Wrapper) Allocate() (http.Handler, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.unloading {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, w.name)
	}
	if !w.initialized {
		im := InstanceManager(DefaultInstanceManager{})
		if w.parent != nil {
			im = w.parent.InstanceManager()
			w.logger = w.parent.Logger().With(zap.String("wrapper", w.name))
		}
		params := make(map[string]string, len(w.params))
		for k, v := range w.params {
			params[k] = v
		}
		cfg := ServletConfig{name: w.name, params: params, ctx: w.parent}
		if err := im.NewInstance(w.handler, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", w.name, err)
		}
		w.im = im
		w.initialized = true
	}
	w.allocated++
	return w.handler, nil
}

// Deallocate returns an instance obtained from Allocate. The last
// deallocation of an unloading wrapper destroys the instance; nobody is
// waiting on that outcome, so a failure is only logged.
func (w *Wrapper) Deallocate() {
	w.mu.Lock()
	if w.allocated > 0 {
		w.allocated--
	}
	destroy := w.readyToDestroy()
	w.mu.Unlock()

	if !destroy {
		return
	}
	if err := w.im.DestroyInstance(w.handler); err != nil {
		w.logger.Error("Deferred handler destroy failed", zap.Error(err))
		return
	}
	w.logger.Debug("Destroyed handler after last request")
}

// Unload takes the wrapper out of service. The instance is destroyed now if
// idle, otherwise when the last in-flight request deallocates it. Only an
// immediate destroy can report an error.
func (w *Wrapper) Unload() error {
	w.mu.Lock()
	w.unloading = true
	destroy := w.readyToDestroy()
	w.mu.Unlock()

	if !destroy {
		return nil
	}
	if err := w.im.DestroyInstance(w.handler); err != nil {
		return fmt.Errorf("failed to destroy %s: %w", w.name, err)
	}
	return nil
}

// readyToDestroy must be called with w.mu held; it marks the instance
// destroyed when it returns true.
func (w *Wrapper) readyToDestroy() bool {
	if !w.unloading || !w.initialized || w.destroyed || w.allocated > 0 {
		return false
	}
	w.destroyed = true
	return true
}

// ServeHTTP runs the pipeline in front of the allocated handler.
func (w *Wrapper) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h, err := w.Allocate()
	if err != nil {
		http.Error(rw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer w.Deallocate()

	w.pipeline.Then(h).ServeHTTP(rw, r)
}
