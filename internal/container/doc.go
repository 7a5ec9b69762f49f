// Package container is a small servlet-style HTTP engine: a Host holds one
// Context per top-level path segment, each Context holds named Wrappers
// bound to URL patterns, and each Wrapper runs a Pipeline of Valves ahead of
// its handler.
//
// The engine knows nothing about who registers handlers. Dynamic
// registration, namespace checks and teardown policy live in
// internal/httpservice, which drives the engine through AddChild,
// RemoveChild, AddMapping, RemoveMapping and FindChild only.
//
// All types are safe for concurrent use: requests are dispatched while
// children and mappings are being added or removed.
package container

import "errors"

var (
	ErrDuplicateChild   = errors.New("child already exists")
	ErrUnknownChild     = errors.New("unknown child")
	ErrDuplicateMapping = errors.New("mapping already exists")
	ErrInvalidPattern   = errors.New("invalid mapping pattern")
	ErrUnavailable      = errors.New("handler unavailable")
	ErrInvalidState     = errors.New("invalid lifecycle state")
)
