package httpservice

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// HTTPContext supplies the per-registration policy a caller binds to its
// handlers: request admission, resource lookup and MIME types.
type HTTPContext interface {
	// HandleSecurity decides whether r may proceed. When it returns false it
	// must have written the response itself.
	HandleSecurity(w http.ResponseWriter, r *http.Request) bool

	// Resource opens the named resource. A missing resource is reported as
	// fs.ErrNotExist.
	Resource(name string) (fs.File, error)

	// MimeType returns the content type for name, or "" to let the engine
	// decide.
	MimeType(name string) string
}

// DefaultHTTPContext allows every request and resolves resources inside
// the caller's file system.
type DefaultHTTPContext struct {
	fsys fs.FS
}

// NewDefaultHTTPContext returns a context serving resources from fsys. A nil
// fsys has no resources.
func NewDefaultHTTPContext(fsys fs.FS) *DefaultHTTPContext {
	return &DefaultHTTPContext{fsys: fsys}
}

func (c *DefaultHTTPContext) HandleSecurity(http.ResponseWriter, *http.Request) bool {
	return true
}

func (c *DefaultHTTPContext) Resource(name string) (fs.File, error) {
	if c.fsys == nil {
		return nil, fs.ErrNotExist
	}
	return c.fsys.Open(resourcePath(name))
}

func (c *DefaultHTTPContext) MimeType(string) string {
	return ""
}

// resourcePath turns a slash-rooted resource name into an fs.FS path.
func resourcePath(name string) string {
	p := strings.TrimPrefix(path.Clean("/"+name), "/")
	if p == "" {
		return "."
	}
	return p
}

func securityOf(hc HTTPContext) SecurityFunc {
	if hc == nil {
		return nil
	}
	return hc.HandleSecurity
}

func mimeOf(hc HTTPContext) func(string) string {
	if hc == nil {
		return nil
	}
	return hc.MimeType
}
