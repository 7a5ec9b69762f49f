// Package server runs the two HTTP listeners of the service.
//
// The public server fronts the container host: every request that no gin
// route claims falls through to host.ServeHTTP, which dispatches it to the
// registered alias. The admin server carries the management API, the live
// event stream and the Prometheus endpoint behind a bearer token.
//
//	:8080  public   /health, everything else -> container host
//	:8081  admin    /admin/status, /admin/* (token), /metrics (token)
//
// Setting admin_port to 0 disables the admin server.
package server
