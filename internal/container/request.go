package container

import (
	"context"
	"net/http"
)

type requestInfoKey struct{}

type requestInfo struct {
	contextPath string
	servletPath string
	pathInfo    string
}

func withRequestInfo(r *http.Request, info requestInfo) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))
}

func infoFrom(r *http.Request) requestInfo {
	info, _ := r.Context().Value(requestInfoKey{}).(requestInfo)
	return info
}

// ContextPath returns the path of the Context that dispatched r.
func ContextPath(r *http.Request) string { return infoFrom(r).contextPath }

// ServletPath returns the part of the request path that selected the handler.
func ServletPath(r *http.Request) string { return infoFrom(r).servletPath }

// PathInfo returns the remainder of the request path after the servlet path.
func PathInfo(r *http.Request) string { return infoFrom(r).pathInfo }
