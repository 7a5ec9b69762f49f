package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/container"
	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
	"github.com/sirosfoundation/go-httpservice/internal/storage"
	"github.com/sirosfoundation/go-httpservice/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type adminEnv struct {
	registry *httpservice.Registry
	factory  *httpservice.Factory
	store    *memory.Store
	handlers *AdminHandlers
	router   *gin.Engine
}

func setupAdminTestHandlers(t *testing.T) *adminEnv {
	t.Helper()
	logger := zap.NewNop()

	host := container.NewHost("localhost")
	require.NoError(t, host.Start())
	registry := httpservice.New(host, httpservice.Config{WorkDir: t.TempDir()}, logger)
	factory := httpservice.NewFactory(registry, logger)
	store := memory.NewStore(100)

	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handlers := NewAdminHandlers(registry, factory, store, events, "localhost", "http://example.test", logger)

	router := gin.New()
	router.GET("/admin/status", handlers.AdminStatus)
	handlers.RegisterRoutes(router.Group("/admin"))

	return &adminEnv{registry: registry, factory: factory, store: store, handlers: handlers, router: router}
}

func (e *adminEnv) do(method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAdminHandlers_AdminStatus(t *testing.T) {
	env := setupAdminTestHandlers(t)
	svc := env.factory.Get("bundle-a", nil)
	_, err := svc.RegisterServlet(context.Background(), "/shop", okHandler(), nil, nil)
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/admin/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ServiceName, resp.Service)
	assert.Equal(t, CurrentAPIVersion, resp.APIVersion)
	assert.Equal(t, 1, resp.Registrations)
	assert.Equal(t, 1, resp.Contexts)
	assert.Equal(t, 1, resp.Owners)
	assert.Equal(t, "ok", resp.Storage)
	assert.Contains(t, resp.Capabilities, "audit")
}

func TestAdminHandlers_ListRegistrations(t *testing.T) {
	env := setupAdminTestHandlers(t)
	ctx := context.Background()
	for _, a := range []string{"/b", "/a", "/a/x"} {
		_, err := env.registry.Register(ctx, "bundle-a", a, okHandler(), nil, nil)
		require.NoError(t, err)
	}

	w := env.do(http.MethodGet, "/admin/registrations")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Registrations []httpservice.Registration `json:"registrations"`
		Count         int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Registrations, 3)
	assert.Equal(t, "/b", resp.Registrations[0].Alias)
	assert.Equal(t, "/a/x", resp.Registrations[2].Alias)
	assert.Equal(t, "/a", resp.Registrations[2].ContextPath)
}

func TestAdminHandlers_RemoveRegistration(t *testing.T) {
	env := setupAdminTestHandlers(t)
	_, err := env.registry.Register(context.Background(), "bundle-a", "/shop/cart", okHandler(), nil, nil)
	require.NoError(t, err)

	w := env.do(http.MethodDelete, "/admin/registrations?alias=/shop/cart")
	require.Equal(t, http.StatusOK, w.Code)
	_, found := env.registry.Lookup("/shop/cart")
	assert.False(t, found)
	assert.Empty(t, env.registry.Contexts())

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing alias", "/admin/registrations", http.StatusBadRequest, "invalid_alias"},
		{"trailing slash", "/admin/registrations?alias=/shop/", http.StatusBadRequest, "invalid_alias"},
		{"not registered", "/admin/registrations?alias=/shop/cart", http.StatusNotFound, "not_registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodDelete, tt.target)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAdminHandlers_ListContexts(t *testing.T) {
	env := setupAdminTestHandlers(t)
	ctx := context.Background()
	_, err := env.registry.Register(ctx, "bundle-a", "/shop", okHandler(), nil, nil)
	require.NoError(t, err)
	_, err = env.registry.Register(ctx, "bundle-a", "/shop/cart", okHandler(), nil, nil)
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/admin/contexts")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Contexts []httpservice.ContextInfo `json:"contexts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Contexts, 1)
	assert.Equal(t, "/shop", resp.Contexts[0].Path)
	assert.Equal(t, 2, resp.Contexts[0].Registrations)
	assert.Contains(t, resp.Contexts[0].Handlers, container.DefaultServletName)
}

func TestAdminHandlers_ListEndpoints(t *testing.T) {
	env := setupAdminTestHandlers(t)
	_, err := env.registry.Register(context.Background(), "bundle-a", "/shop", okHandler(), nil, nil)
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/admin/endpoints")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Endpoints []httpservice.Endpoint `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Endpoints, 1)
	assert.Equal(t, "http://example.test/shop", resp.Endpoints[0].URL)

	w = env.do(http.MethodGet, "/admin/endpoints?base_url=https://other.test")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Endpoints, 1)
	assert.Equal(t, "https://other.test/shop", resp.Endpoints[0].URL)
}

func TestAdminHandlers_ReleaseOwner(t *testing.T) {
	env := setupAdminTestHandlers(t)
	ctx := context.Background()
	svc := env.factory.Get("bundle-a", nil)
	for i := 0; i < 3; i++ {
		_, err := svc.RegisterServlet(ctx, fmt.Sprintf("/a%d", i), okHandler(), nil, nil)
		require.NoError(t, err)
	}
	_, err := env.registry.Register(ctx, "bundle-b", "/b", okHandler(), nil, nil)
	require.NoError(t, err)

	w := env.do(http.MethodDelete, "/admin/owners/bundle-a")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "bundle-a", body["owner"])
	assert.Equal(t, float64(3), body["released"])

	regs := env.registry.Registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "bundle-b", regs[0].Owner)
	assert.NotContains(t, env.factory.Owners(), "bundle-a")

	// Releasing an unknown owner is a no-op.
	w = env.do(http.MethodDelete, "/admin/owners/nobody")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["released"])
}

func TestAdminHandlers_ListAudit(t *testing.T) {
	env := setupAdminTestHandlers(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, owner := range []string{"a", "b", "a"} {
		require.NoError(t, env.store.Audit().Append(ctx, &storage.AuditRecord{
			ID:    fmt.Sprintf("r%d", i),
			Event: "registered",
			Alias: fmt.Sprintf("/x%d", i),
			Owner: owner,
			Time:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	var resp struct {
		Records []storage.AuditRecord `json:"records"`
		Count   int                   `json:"count"`
	}

	w := env.do(http.MethodGet, "/admin/audit?owner=a")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "r2", resp.Records[0].ID)

	w = env.do(http.MethodGet, "/admin/audit?limit=1")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = env.do(http.MethodGet, "/admin/audit?since=2026-05-01T00:01:00Z")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	w = env.do(http.MethodGet, "/admin/audit?owner=nobody")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records":[],"count":0}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/admin/audit?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/admin/audit?since=yesterday").Code)
}

func TestAdminHandlers_Events(t *testing.T) {
	env := setupAdminTestHandlers(t)
	assert.Equal(t, http.StatusTeapot, env.do(http.MethodGet, "/admin/events").Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", httpservice.ErrInvalidAlias), http.StatusBadRequest, "invalid_alias"},
		{httpservice.ErrDuplicatePath, http.StatusConflict, "duplicate_path"},
		{httpservice.ErrNotRegistered, http.StatusNotFound, "not_registered"},
		{httpservice.ErrWrongContextKind, http.StatusConflict, "wrong_context_kind"},
		{httpservice.ErrHandlerInitFailed, http.StatusInternalServerError, "internal_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
