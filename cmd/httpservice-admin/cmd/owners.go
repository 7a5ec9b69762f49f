package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var ownersCmd = &cobra.Command{
	Use:   "owners",
	Short: "Manage registration owners",
}

var ownersReleaseCmd = &cobra.Command{
	Use:   "release [owner]",
	Short: "Unregister every alias held by an owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Owner    string `json:"owner"`
			Released int    `json:"released"`
		}
		if ok, err := fetch(cmd, http.MethodDelete, "/admin/owners/"+url.PathEscape(args[0]), &resp); !ok {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Released %d registration(s) of %s\n", resp.Released, resp.Owner)
		return nil
	},
}

func init() {
	ownersCmd.AddCommand(ownersReleaseCmd)
	rootCmd.AddCommand(ownersCmd)
}
