package httpservice

import (
	"net/http"
)

// SecurityFunc admits or rejects a request before it reaches a registered
// handler. Returning false stops the request; the function is then
// responsible for the response.
type SecurityFunc func(w http.ResponseWriter, r *http.Request) bool

// SecurityGate is the first valve of every registered handler's pipeline.
// Rejections are counted per routing context.
type SecurityGate struct {
	contextPath string
	check       SecurityFunc
	metrics     *Metrics
}

func newSecurityGate(contextPath string, check SecurityFunc, metrics *Metrics) *SecurityGate {
	return &SecurityGate{contextPath: contextPath, check: check, metrics: metrics}
}

// Invoke runs the bound check and forwards the request unchanged when it
// passes. A nil check admits everything.
func (g *SecurityGate) Invoke(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if g.check != nil && !g.check(w, r) {
		g.metrics.securityRejected(g.contextPath)
		return
	}
	next.ServeHTTP(w, r)
}
