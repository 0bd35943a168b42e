package main

import (
	"fmt"

	"github.com/spf13/cobra"

	templating "github.com/goliatone/go-templating"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered variable kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, desc := range templating.NewDefaultRegistry().Descriptors() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", desc.Type, desc.Description)
			}
			return nil
		},
	}
}
