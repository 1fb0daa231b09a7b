// Package main is the entry point for the livedesk CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tOgg1/livedesk/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	v := version
	if commit != "none" {
		v = fmt.Sprintf("%s (%s, %s)", version, commit, date)
	}
	if err := cli.Execute(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
