package container

import (
	"net/http"
	"sync"
)

// Valve is one stage of a Wrapper pipeline. A valve either handles the
// request itself or passes it to next.
type Valve interface {
	Invoke(w http.ResponseWriter, r *http.Request, next http.Handler)
}

// ValveFunc adapts a function to Valve.
type ValveFunc func(w http.ResponseWriter, r *http.Request, next http.Handler)

func (f ValveFunc) Invoke(w http.ResponseWriter, r *http.Request, next http.Handler) {
	f(w, r, next)
}

// Pipeline is an ordered list of valves ending in a basic handler.
type Pipeline struct {
	mu     sync.RWMutex
	valves []Valve
}

// AddValve appends v after the valves already installed.
func (p *Pipeline) AddValve(v Valve) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valves = append(p.valves, v)
}

// Valves returns a snapshot of the installed valves.
func (p *Pipeline) Valves() []Valve {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Valve, len(p.valves))
	copy(out, p.valves)
	return out
}

// Then chains the valves in front of basic.
func (p *Pipeline) Then(basic http.Handler) http.Handler {
	valves := p.Valves()
	h := basic
	for i := len(valves) - 1; i >= 0; i-- {
		v, next := valves[i], h
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v.Invoke(w, r, next)
		})
	}
	return h
}
