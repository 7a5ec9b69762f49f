// Package api provides the admin HTTP handlers of the HTTP service.
package api

// APIVersion represents the admin API version supported by this server.
// Admin clients read api_version from /admin/status to pick the endpoints
// they may call.
const (
	// APIVersion1 is the first admin API version.
	APIVersion1 = 1

	// CurrentAPIVersion is the highest API version supported by this server.
	CurrentAPIVersion = APIVersion1
)

// APICapabilities describes the features available at each API version.
var APICapabilities = map[int][]string{
	APIVersion1: {
		"registrations",
		"contexts",
		"endpoints",
		"owners",
		"audit",
		"events",
	},
}

// StatusResponse is the response from the /admin/status endpoint.
type StatusResponse struct {
	Status        string   `json:"status"`
	Service       string   `json:"service"`
	Host          string   `json:"host,omitempty"`
	APIVersion    int      `json:"api_version"`
	Capabilities  []string `json:"capabilities,omitempty"`
	Registrations int      `json:"registrations"`
	Contexts      int      `json:"contexts"`
	Owners        int      `json:"owners"`
	Storage       string   `json:"storage"`
}
