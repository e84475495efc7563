package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGrammarsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "grammars",
		Short: "List the registered grammars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := a.registry.List()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, infos)
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%s %s\n", cyan("•"), bold(info.Name))
				if len(info.Aliases) > 0 {
					fmt.Fprintf(out, "  aliases:    %s\n", strings.Join(info.Aliases, ", "))
				}
				fmt.Fprintf(out, "  extensions: %s\n", strings.Join(info.Extensions, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print grammars as JSON")
	return cmd
}
