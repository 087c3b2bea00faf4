// Package commands defines the CLI command structure and flag
// bindings. Command execution is delegated to handler functions in the
// handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the cloudboot CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudboot",
		Short: "Launch a cloud server and bootstrap it over SSH",
	}

	cmd.AddCommand(Launch())
	cmd.AddCommand(Version())

	return cmd
}
