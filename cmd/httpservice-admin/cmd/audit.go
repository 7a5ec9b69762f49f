package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// AuditRecord represents one audit trail entry
type AuditRecord struct {
	ID          string `json:"id"`
	Event       string `json:"event"`
	Alias       string `json:"alias"`
	ContextPath string `json:"context_path"`
	Owner       string `json:"owner"`
	Kind        string `json:"kind"`
	Time        string `json:"time"`
}

var (
	auditOwner string
	auditAlias string
	auditEvent string
	auditSince string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse the registration audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if auditOwner != "" {
			q.Set("owner", auditOwner)
		}
		if auditAlias != "" {
			q.Set("alias", auditAlias)
		}
		if auditEvent != "" {
			q.Set("event", auditEvent)
		}
		if auditSince != "" {
			q.Set("since", auditSince)
		}
		if auditLimit > 0 {
			q.Set("limit", strconv.Itoa(auditLimit))
		}
		path := "/admin/audit"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp struct {
			Records []AuditRecord `json:"records"`
		}
		if ok, err := fetch(cmd, http.MethodGet, path, &resp); !ok {
			return err
		}

		w := cmd.OutOrStdout()
		if len(resp.Records) == 0 {
			fmt.Fprintln(w, "No audit records found.")
			return nil
		}

		headers := []string{"TIME", "EVENT", "ALIAS", "CONTEXT", "OWNER"}
		rows := make([][]string, len(resp.Records))
		for i, r := range resp.Records {
			rows[i] = []string{r.Time, r.Event, r.Alias, r.ContextPath, r.Owner}
		}
		printTable(w, headers, rows)
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditOwner, "owner", "", "Only records of this owner")
	auditListCmd.Flags().StringVar(&auditAlias, "alias", "", "Only records of this alias")
	auditListCmd.Flags().StringVar(&auditEvent, "event", "", "Only this event type")
	auditListCmd.Flags().StringVar(&auditSince, "since", "", "Only records at or after this RFC 3339 time")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 0, "Maximum number of records")
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(auditCmd)
}
