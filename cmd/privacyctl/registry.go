package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dsrengine/internal/platform/privacy"
	"dsrengine/internal/registry"
	"dsrengine/internal/subjectdata"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the category policy file",
	}
	cmd.AddCommand(newRegistryValidateCmd())
	return cmd
}

func newRegistryValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a category policy file and print its categories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := DefaultRegistryFile
			if len(args) == 1 {
				path = args[0]
			}
			return runRegistryValidate(cmd, path)
		},
	}
}

func runRegistryValidate(cmd *cobra.Command, path string) error {
	cfg, err := registry.LoadFile(path)
	if err != nil {
		return err
	}
	anonymizer, err := privacy.NewAnonymizer()
	if err != nil {
		return err
	}
	snap, err := registry.Build(cfg, subjectdata.NewFactory(subjectdata.NewInMemoryStore(), anonymizer))
	if err != nil {
		return fmt.Errorf("invalid policy %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tLEGAL BASIS\tRETENTION\tDELETABLE\tANONYMIZATION")
	for _, c := range snap.ListAll() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", c.ID, c.LegalBasis, registry.FormatRetention(c.Retention), c.Deletable, c.Anonymization)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	purposes := snap.Purposes()
	if len(purposes) > 0 {
		fmt.Fprintln(out)
		for _, p := range purposes {
			fmt.Fprintf(out, "purpose %s: %s\n", p.ID, strings.Join(p.Categories, ", "))
		}
	}
	fmt.Fprintf(out, "\n%s is valid\n", path)
	return nil
}
