package container

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultServletName is the implicit handler that serves a context's doc
// base when no mapping matches.
const DefaultServletName = "default"

// ContextConfig is a lifecycle listener that installs the implicit
// handlers of a context before it starts.
type ContextConfig struct {
	// ServeDocBase lets the default handler serve files from the doc base.
	// When false it answers 404 for everything.
	ServeDocBase bool

	// Extra implicit handlers, keyed by wrapper name.
	Extra map[string]http.Handler
}

func (cc ContextConfig) LifecycleEvent(ctx *Context, event LifecycleEvent) {
	if event != EventBeforeStart {
		return
	}
	if ctx.FindChild(DefaultServletName) == nil {
		cc.addImplicit(ctx, DefaultServletName, &defaultHandler{ctx: ctx, serve: cc.ServeDocBase})
	}
	for name, h := range cc.Extra {
		if ctx.FindChild(name) == nil {
			cc.addImplicit(ctx, name, h)
		}
	}
}

func (cc ContextConfig) addImplicit(ctx *Context, name string, h http.Handler) {
	w := ctx.CreateWrapper(name, h)
	w.implicit = true
	// Only fails on a name collision, which FindChild ruled out.
	_ = ctx.AddChild(w)
	ctx.Logger().Debug("Installed implicit handler", zap.String("wrapper", name))
}

type defaultHandler struct {
	ctx   *Context
	serve bool
}

func (d *defaultHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !d.serve || d.ctx.DocBase() == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + ServletPath(r) + PathInfo(r))
	f, err := os.Open(filepath.Join(d.ctx.DocBase(), filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			http.NotFound(w, r)
			return
		}
		d.ctx.Logger().Error("Failed to open doc base file", zap.String("file", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	if ct := d.ctx.MimeType(name); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
