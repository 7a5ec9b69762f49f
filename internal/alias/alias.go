// Package alias validates registration aliases and splits them into the
// two-level routing namespace used by the HTTP service: a context path (the
// first path segment) and a servlet path (everything after it).
package alias

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAlias is returned for aliases that cannot be routed.
var ErrInvalidAlias = errors.New("invalid alias")

// Root is the alias denoting the root of the URI namespace.
const Root = "/"

// Path is a parsed alias.
type Path struct {
	// ContextPath is the routing context, e.g. "/files". Never empty.
	ContextPath string `json:"context_path"`
	// ServletPath is the sub-path inside the context, e.g. "/images", or "".
	ServletPath string `json:"servlet_path"`
}

// String reconstructs the parsed alias.
func (p Path) String() string {
	return p.ContextPath + p.ServletPath
}

// Parse validates alias and splits it at the first '/' found after the
// leading one.
//
// An alias must begin with '/' and must not end with '/', except for "/"
// which denotes the root alias.
func Parse(alias string) (Path, error) {
	if alias == "" {
		return Path{}, fmt.Errorf("%w: alias cannot be empty", ErrInvalidAlias)
	}
	if !strings.HasPrefix(alias, "/") {
		return Path{}, fmt.Errorf("%w: alias must start with a '/', got %q", ErrInvalidAlias, alias)
	}
	if alias != Root && strings.HasSuffix(alias, "/") {
		return Path{}, fmt.Errorf("%w: alias must not end with a '/', got %q", ErrInvalidAlias, alias)
	}

	if slash := strings.IndexByte(alias[1:], '/'); slash >= 0 {
		i := slash + 1
		return Path{ContextPath: alias[:i], ServletPath: alias[i:]}, nil
	}
	return Path{ContextPath: alias}, nil
}
