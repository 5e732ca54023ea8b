package main

import (
	"encoding/json"
	"io"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/spf13/cobra"
)

// validator builds a Validator honoring --max-length.
func validator(cmd *cobra.Command) (*rna.Validator, error) {
	cfg := rna.DefaultConfig()
	if n, err := cmd.Flags().GetInt("max-length"); err == nil && n > 0 {
		cfg.MaxLength = n
	}
	return rna.NewValidator(cfg)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
