package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/alias"
	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
	"github.com/sirosfoundation/go-httpservice/internal/storage"
)

// ServiceName is reported by the status endpoint
const ServiceName = "go-httpservice"

// AdminHandlers contains handlers for the admin API endpoints
type AdminHandlers struct {
	registry *httpservice.Registry
	factory  *httpservice.Factory
	store    storage.Store
	events   http.Handler
	hostName string
	baseURL  string
	logger   *zap.Logger
}

// NewAdminHandlers creates a new AdminHandlers instance. events serves the
// live event stream and may be nil.
func NewAdminHandlers(registry *httpservice.Registry, factory *httpservice.Factory, store storage.Store, events http.Handler, hostName, baseURL string, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{
		registry: registry,
		factory:  factory,
		store:    store,
		events:   events,
		hostName: hostName,
		baseURL:  baseURL,
		logger:   logger.Named("admin-api"),
	}
}

// RegisterRoutes mounts the protected admin routes on group
func (h *AdminHandlers) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/registrations", h.ListRegistrations)
	group.DELETE("/registrations", h.RemoveRegistration)
	group.GET("/contexts", h.ListContexts)
	group.GET("/endpoints", h.ListEndpoints)
	group.DELETE("/owners/:owner", h.ReleaseOwner)
	group.GET("/audit", h.ListAudit)
	if h.events != nil {
		group.GET("/events", gin.WrapH(h.events))
	}
}

// AdminStatus returns service status and registry counts
// GET /admin/status
func (h *AdminHandlers) AdminStatus(c *gin.Context) {
	status := "ok"
	storageStatus := "ok"
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Audit storage unavailable", zap.Error(err))
		status = "degraded"
		storageStatus = "unavailable"
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:        status,
		Service:       ServiceName,
		Host:          h.hostName,
		APIVersion:    CurrentAPIVersion,
		Capabilities:  APICapabilities[CurrentAPIVersion],
		Registrations: len(h.registry.Registrations()),
		Contexts:      len(h.registry.Contexts()),
		Owners:        len(h.factory.Owners()),
		Storage:       storageStatus,
	})
}

// ListRegistrations returns the live registrations in insertion order
// GET /admin/registrations
func (h *AdminHandlers) ListRegistrations(c *gin.Context) {
	regs := h.registry.Registrations()
	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}

// RemoveRegistration force-unregisters an alias on behalf of its owner
// DELETE /admin/registrations?alias=/path
func (h *AdminHandlers) RemoveRegistration(c *gin.Context) {
	aliasPath := c.Query("alias")
	if _, err := alias.Parse(aliasPath); err != nil {
		h.respondError(c, err)
		return
	}

	reg, ok := h.registry.Lookup(aliasPath)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_registered", "message": "Alias not registered: " + aliasPath})
		return
	}

	if err := h.registry.Unregister(c.Request.Context(), reg.Owner, aliasPath); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Alias removed via admin API",
		zap.String("alias", aliasPath),
		zap.String("owner", reg.Owner))
	c.JSON(http.StatusOK, gin.H{"removed": reg})
}

// ListContexts returns the routing contexts
// GET /admin/contexts
func (h *AdminHandlers) ListContexts(c *gin.Context) {
	contexts := h.registry.Contexts()
	c.JSON(http.StatusOK, gin.H{"contexts": contexts, "count": len(contexts)})
}

// ListEndpoints returns the published endpoint URLs. A base_url query
// parameter overrides the configured one.
// GET /admin/endpoints
func (h *AdminHandlers) ListEndpoints(c *gin.Context) {
	base := c.DefaultQuery("base_url", h.baseURL)
	endpoints := h.registry.Endpoints(base)
	c.JSON(http.StatusOK, gin.H{"endpoints": endpoints, "count": len(endpoints)})
}

// ReleaseOwner withdraws every alias of a caller
// DELETE /admin/owners/:owner
func (h *AdminHandlers) ReleaseOwner(c *gin.Context) {
	owner := c.Param("owner")
	before := countOwned(h.registry.Registrations(), owner)

	if err := h.factory.Release(c.Request.Context(), owner); err != nil {
		h.logger.Error("Failed to release owner", zap.String("owner", owner), zap.Error(err))
		h.respondError(c, err)
		return
	}

	released := before - countOwned(h.registry.Registrations(), owner)
	h.logger.Info("Owner released via admin API",
		zap.String("owner", owner),
		zap.Int("released", released))
	c.JSON(http.StatusOK, gin.H{"owner": owner, "released": released})
}

func countOwned(regs []httpservice.Registration, owner string) int {
	n := 0
	for _, r := range regs {
		if r.Owner == owner {
			n++
		}
	}
	return n
}

// ListAudit returns the audit trail, newest first
// GET /admin/audit?owner=&alias=&event=&since=&limit=
func (h *AdminHandlers) ListAudit(c *gin.Context) {
	filter := storage.AuditFilter{
		Owner: c.Query("owner"),
		Alias: c.Query("alias"),
		Event: c.Query("event"),
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "since must be an RFC 3339 timestamp"})
			return
		}
		filter.Since = since
	}

	records, err := h.store.Audit().List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list audit records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_error", "message": "Failed to list audit records"})
		return
	}
	if records == nil {
		records = []*storage.AuditRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// respondError maps registry errors to status codes
func (h *AdminHandlers) respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Admin request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, httpservice.ErrInvalidAlias):
		return http.StatusBadRequest, "invalid_alias"
	case errors.Is(err, httpservice.ErrDuplicatePath):
		return http.StatusConflict, "duplicate_path"
	case errors.Is(err, httpservice.ErrNotRegistered):
		return http.StatusNotFound, "not_registered"
	case errors.Is(err, httpservice.ErrWrongContextKind):
		return http.StatusConflict, "wrong_context_kind"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
