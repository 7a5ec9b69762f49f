package httpservice

import (
	"fmt"
	"net/http"

	"github.com/sirosfoundation/go-httpservice/internal/container"
)

// wrapperName is the container child name for a servlet path.
func wrapperName(servletPath string) string {
	if servletPath == "" {
		return "/"
	}
	return servletPath
}

func mappingPattern(servletPath string) string {
	return servletPath + "/*"
}

// attach installs handler at servletPath inside rc: security gate first,
// then one eager initialisation pass, then the URL mapping. On error
// nothing is left behind in rc.
func attach(rc *routingContext, alias, servletPath string, handler http.Handler, initParams map[string]string, owner string, security SecurityFunc, metrics *Metrics) (*container.Wrapper, error) {
	name := wrapperName(servletPath)
	pattern := mappingPattern(servletPath)

	if rc.ctx.FindChild(name) != nil || rc.ctx.FindMapping(pattern) != "" {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, alias)
	}

	w := rc.ctx.CreateWrapper(name, handler)
	for k, v := range initParams {
		w.AddInitParameter(k, v)
	}
	w.SetOwner(owner)
	w.Pipeline().AddValve(newSecurityGate(rc.path, security, metrics))

	if err := rc.ctx.AddChild(w); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDuplicatePath, alias, err)
	}

	if _, err := w.Allocate(); err != nil {
		rc.ctx.RemoveChild(w)
		return nil, fmt.Errorf("%w: %s: %w", ErrHandlerInitFailed, alias, err)
	}
	w.Deallocate()

	if err := rc.ctx.AddMapping(pattern, name); err != nil {
		rc.ctx.RemoveChild(w)
		return nil, fmt.Errorf("%w: %s: %w", ErrDuplicatePath, alias, err)
	}
	return w, nil
}

// detach removes the mapping and then the handler. Requests already
// dispatched finish on the instance they hold. The handler is unreachable
// afterwards even when its teardown fails.
func detach(rc *routingContext, servletPath string, w *container.Wrapper) error {
	rc.ctx.RemoveMapping(mappingPattern(servletPath))
	return rc.ctx.RemoveChild(w)
}
