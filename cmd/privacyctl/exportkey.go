package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dsrengine/internal/export"
)

func newExportKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-key",
		Short: "Generate an identity for sealing export payloads",
		Long: "Prints a new age identity. Set it as EXPORT_AGE_IDENTITY on the server to " +
			"encrypt access-request exports at rest.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, recipient, err := export.GenerateIdentity()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# recipient: %s\n", recipient)
			fmt.Fprintln(out, identity)
			return nil
		},
	}
}
