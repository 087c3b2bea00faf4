// Package main is the entry point for the cloudboot CLI.
//
// cloudboot launches a single Hetzner Cloud server, waits until its
// SSH service answers (directly or through a gateway host), and hands
// the machine off to a configuration-management bootstrap run.
//
// For detailed usage information, run:
//
//	cloudboot --help
package main

import (
	"fmt"
	"os"

	"cloudboot/cmd/cloudboot/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
