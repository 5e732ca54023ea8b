package main

import (
	"fmt"
	"io"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/submit"
	"github.com/spf13/cobra"
)

func newExamplesCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List the built-in example structures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := submit.Examples()
			if jsonOutput(cmd) {
				return writeJSON(stdout, list)
			}
			for _, ex := range list {
				fmt.Fprintf(stdout, "%d  %-14s seed=%d conformations=%d  %s\n",
					ex.Number, ex.Name, ex.Seed, ex.Conformations, ex.Description)
			}
			return nil
		},
	}
}
