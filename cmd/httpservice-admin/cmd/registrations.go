package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// Registration represents a live alias registration
type Registration struct {
	ID          string `json:"id"`
	Alias       string `json:"alias"`
	ContextPath string `json:"context_path"`
	ServletPath string `json:"servlet_path"`
	Kind        string `json:"kind"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"created_at"`
}

// RegistrationListResponse represents the list registrations response
type RegistrationListResponse struct {
	Registrations []Registration `json:"registrations"`
}

var registrationsCmd = &cobra.Command{
	Use:     "registrations",
	Aliases: []string{"reg"},
	Short:   "Manage alias registrations",
}

var registrationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live registrations in the order they were made",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp RegistrationListResponse
		if ok, err := fetch(cmd, http.MethodGet, "/admin/registrations", &resp); !ok {
			return err
		}

		w := cmd.OutOrStdout()
		if len(resp.Registrations) == 0 {
			fmt.Fprintln(w, "No registrations found.")
			return nil
		}

		headers := []string{"ALIAS", "CONTEXT", "KIND", "OWNER", "CREATED"}
		rows := make([][]string, len(resp.Registrations))
		for i, r := range resp.Registrations {
			rows[i] = []string{r.Alias, r.ContextPath, r.Kind, r.Owner, r.CreatedAt}
		}
		printTable(w, headers, rows)
		return nil
	},
}

var registrationsRemoveCmd = &cobra.Command{
	Use:   "remove [alias]",
	Short: "Unregister an alias on behalf of its owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Removed Registration `json:"removed"`
		}
		path := "/admin/registrations?alias=" + url.QueryEscape(args[0])
		if ok, err := fetch(cmd, http.MethodDelete, path, &resp); !ok {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (owner %s)\n", resp.Removed.Alias, resp.Removed.Owner)
		return nil
	},
}

func init() {
	registrationsCmd.AddCommand(registrationsListCmd)
	registrationsCmd.AddCommand(registrationsRemoveCmd)
	rootCmd.AddCommand(registrationsCmd)
}
