package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ContextInfo represents a routing context
type ContextInfo struct {
	Path          string   `json:"path"`
	State         string   `json:"state"`
	Handlers      []string `json:"handlers"`
	Registrations int      `json:"registrations"`
	CreatedBy     string   `json:"created_by"`
}

// Endpoint represents a published URL
type Endpoint struct {
	URL        string   `json:"url"`
	Alias      string   `json:"alias"`
	Owner      string   `json:"owner"`
	Categories []string `json:"categories"`
}

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "Inspect routing contexts",
}

var contextsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routing contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Contexts []ContextInfo `json:"contexts"`
		}
		if ok, err := fetch(cmd, http.MethodGet, "/admin/contexts", &resp); !ok {
			return err
		}

		w := cmd.OutOrStdout()
		if len(resp.Contexts) == 0 {
			fmt.Fprintln(w, "No contexts found.")
			return nil
		}

		headers := []string{"PATH", "STATE", "REGISTRATIONS", "HANDLERS", "CREATED BY"}
		rows := make([][]string, len(resp.Contexts))
		for i, c := range resp.Contexts {
			rows[i] = []string{c.Path, c.State, strconv.Itoa(c.Registrations), strings.Join(c.Handlers, ","), c.CreatedBy}
		}
		printTable(w, headers, rows)
		return nil
	},
}

var endpointsBaseURL string

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Inspect published endpoints",
}

var endpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the URLs of all registrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/admin/endpoints"
		if endpointsBaseURL != "" {
			path += "?base_url=" + url.QueryEscape(endpointsBaseURL)
		}

		var resp struct {
			Endpoints []Endpoint `json:"endpoints"`
		}
		if ok, err := fetch(cmd, http.MethodGet, path, &resp); !ok {
			return err
		}

		w := cmd.OutOrStdout()
		if len(resp.Endpoints) == 0 {
			fmt.Fprintln(w, "No endpoints found.")
			return nil
		}

		headers := []string{"URL", "OWNER", "CATEGORIES"}
		rows := make([][]string, len(resp.Endpoints))
		for i, e := range resp.Endpoints {
			rows[i] = []string{e.URL, e.Owner, strings.Join(e.Categories, ",")}
		}
		printTable(w, headers, rows)
		return nil
	},
}

func init() {
	contextsCmd.AddCommand(contextsListCmd)
	rootCmd.AddCommand(contextsCmd)

	endpointsListCmd.Flags().StringVar(&endpointsBaseURL, "base-url", "", "Override the service base URL")
	endpointsCmd.AddCommand(endpointsListCmd)
	rootCmd.AddCommand(endpointsCmd)
}
