// Package main provides the httpservice-admin CLI tool for managing a running
// HTTP service.
package main

import (
	"os"

	"github.com/sirosfoundation/go-httpservice/cmd/httpservice-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
