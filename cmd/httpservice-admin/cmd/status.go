package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// StatusResponse mirrors the admin status endpoint
type StatusResponse struct {
	Status        string   `json:"status"`
	Service       string   `json:"service"`
	Host          string   `json:"host"`
	APIVersion    int      `json:"api_version"`
	Capabilities  []string `json:"capabilities"`
	Registrations int      `json:"registrations"`
	Contexts      int      `json:"contexts"`
	Owners        int      `json:"owners"`
	Storage       string   `json:"storage"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp StatusResponse
		if ok, err := fetch(cmd, http.MethodGet, "/admin/status", &resp); !ok {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Status:        %s\n", resp.Status)
		fmt.Fprintf(w, "Service:       %s (api v%d)\n", resp.Service, resp.APIVersion)
		fmt.Fprintf(w, "Host:          %s\n", resp.Host)
		fmt.Fprintf(w, "Registrations: %d\n", resp.Registrations)
		fmt.Fprintf(w, "Contexts:      %d\n", resp.Contexts)
		fmt.Fprintf(w, "Owners:        %d\n", resp.Owners)
		fmt.Fprintf(w, "Storage:       %s\n", resp.Storage)
		fmt.Fprintf(w, "Capabilities:  %s\n", strings.Join(resp.Capabilities, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
