package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/container"
	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
	"github.com/sirosfoundation/go-httpservice/pkg/config"
	"github.com/sirosfoundation/go-httpservice/pkg/httpcontext"
)

func TestRegisterResources(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "site", "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "site", "index.html"), []byte("<h1>hi</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "site", "css", "app.css"), []byte("body{}"), 0o644))

	hash, err := httpcontext.HashPassword("pw")
	require.NoError(t, err)

	host := container.NewHost("localhost")
	require.NoError(t, host.Start())
	registry := httpservice.New(host, httpservice.Config{WorkDir: t.TempDir()}, zap.NewNop())
	factory := httpservice.NewFactory(registry, zap.NewNop())

	resources := []config.ResourceConfig{
		{Alias: "/site", Dir: "site", Owner: "config", Name: "/"},
		{Alias: "/private", Dir: "site", Owner: "config", Name: "/css",
			Auth: config.ResourceAuthConfig{Type: "basic", Users: map[string]string{"admin": hash}}},
	}
	require.NoError(t, registerResources(context.Background(), factory, resources, base, zap.NewNop()))

	get := func(path string, auth bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth {
			req.SetBasicAuth("admin", "pw")
		}
		w := httptest.NewRecorder()
		host.ServeHTTP(w, req)
		return w
	}

	w := get("/site/index.html", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h1>hi</h1>", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get("/private/app.css", false).Code)

	w = get("/private/app.css", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")

	regs := registry.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, httpservice.KindResource, regs[0].Kind)
	assert.Equal(t, []string{"config"}, factory.Owners())
}

func TestRegisterResources_Duplicate(t *testing.T) {
	host := container.NewHost("localhost")
	require.NoError(t, host.Start())
	registry := httpservice.New(host, httpservice.Config{WorkDir: t.TempDir()}, zap.NewNop())
	factory := httpservice.NewFactory(registry, zap.NewNop())

	dir := t.TempDir()
	resources := []config.ResourceConfig{
		{Alias: "/a", Dir: dir, Owner: "one", Name: "/"},
		{Alias: "/a", Dir: dir, Owner: "two", Name: "/"},
	}
	err := registerResources(context.Background(), factory, resources, "", zap.NewNop())
	assert.ErrorIs(t, err, httpservice.ErrDuplicatePath)
}

func TestResourceContext(t *testing.T) {
	base := httpservice.NewDefaultHTTPContext(os.DirFS(t.TempDir()))

	hc, err := resourceContext(base, config.ResourceAuthConfig{})
	require.NoError(t, err)
	assert.Same(t, base, hc)

	hc, err = resourceContext(base, config.ResourceAuthConfig{Type: "bearer", Secret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &httpcontext.Bearer{}, hc)

	_, err = resourceContext(base, config.ResourceAuthConfig{Type: "oauth"})
	assert.Error(t, err)
}
