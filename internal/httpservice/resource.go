package httpservice

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/sirosfoundation/go-httpservice/internal/container"
)

// ResourceHandler serves the resources an HTTPContext exposes under a base
// name. A request for <alias>/foo.txt is answered with resource
// <name>/foo.txt.
type ResourceHandler struct {
	name string
	hc   HTTPContext
}

// NewResourceHandler validates name and binds it to hc. Like aliases, name
// must not end with '/' unless it is "/".
func NewResourceHandler(name string, hc HTTPContext) (*ResourceHandler, error) {
	if hc == nil {
		return nil, errors.New("nil http context")
	}
	if name == "" {
		return nil, errors.New("empty resource name")
	}
	if name != "/" && strings.HasSuffix(name, "/") {
		return nil, fmt.Errorf("resource name %q ends with '/'", name)
	}
	return &ResourceHandler{name: name, hc: hc}, nil
}

func (h *ResourceHandler) Name() string { return h.name }

// resolve maps a path info onto a resource name under h.name. Dot segments
// are collapsed first, and a result outside h.name is refused.
func (h *ResourceHandler) resolve(pathInfo string) (string, bool) {
	base := path.Clean("/" + h.name)
	resource := path.Clean(base + "/" + strings.TrimPrefix(pathInfo, "/"))
	if base != "/" && resource != base && !strings.HasPrefix(resource, base+"/") {
		return "", false
	}
	return resource, true
}

func (h *ResourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	resource, ok := h.resolve(container.PathInfo(r))
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := h.hc.Resource(resource)
	if err != nil || f == nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		http.NotFound(w, r)
		return
	}

	ct := h.hc.MimeType(resource)
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(resource))
	}
	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	if rs, ok := f.(io.ReadSeeker); ok && err == nil {
		http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
		return
	}

	if err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.Copy(w, f)
}

