package main

import (
	"fmt"
	"io"
	"os"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/spf13/cobra"
)

type validateResult struct {
	Validated           bool       `json:"validated"`
	FixSuggested        bool       `json:"fix_suggested"`
	Name                string     `json:"name,omitempty"`
	Sequence            string     `json:"sequence,omitempty"`
	Structure           string     `json:"structure,omitempty"`
	Repaired            string     `json:"repaired,omitempty"`
	MismatchingBrackets []int      `json:"mismatching_brackets,omitempty"`
	IncorrectPairs      []rna.Pair `json:"incorrect_pairs,omitempty"`
	Errors              []string   `json:"errors,omitempty"`
}

func newValidateCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a structure file (stdin when omitted or -)",
		Long: `Validate a FASTA-like structure: optional >name lines, each followed by a
sequence line and a dot-bracket line. Unmatched brackets and disallowed base
pairs are reported together with the repaired structure.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			v, err := validator(cmd)
			if err != nil {
				return err
			}
			return runValidate(raw, v, jsonOutput(cmd), stdout, stderr)
		},
	}
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func runValidate(raw string, v *rna.Validator, asJSON bool, stdout, stderr io.Writer) error {
	out := rna.Check(raw, v)

	res := validateResult{Errors: rna.Messages(out)}
	if ok, isValid := out.(rna.Validated); isValid {
		res = validateResult{
			Validated:           true,
			FixSuggested:        ok.FixSuggested,
			Name:                ok.Name,
			Sequence:            rna.ApplySeparator(ok.Sequence, ok.Separator),
			Structure:           rna.ApplySeparator(ok.Structure, ok.Separator),
			MismatchingBrackets: ok.MismatchingBrackets,
			IncorrectPairs:      ok.IncorrectPairs,
		}
		if ok.FixSuggested {
			res.Repaired = rna.ApplySeparator(ok.Repaired, ok.Separator)
		}
	}

	if asJSON {
		if err := writeJSON(stdout, res); err != nil {
			return err
		}
		if !res.Validated {
			return errExit
		}
		return nil
	}

	if !res.Validated {
		for _, msg := range res.Errors {
			fmt.Fprintf(stderr, "invalid: %s\n", msg)
		}
		return errExit
	}
	if !res.FixSuggested {
		fmt.Fprintln(stdout, "valid")
		return nil
	}
	fmt.Fprintln(stdout, "valid, fix suggested")
	for _, i := range res.MismatchingBrackets {
		fmt.Fprintf(stdout, "  unmatched bracket at %d\n", i+1)
	}
	for _, p := range res.IncorrectPairs {
		fmt.Fprintf(stdout, "  disallowed pair %d-%d\n", p.I+1, p.J+1)
	}
	fmt.Fprintf(stdout, "%s\n%s\n", res.Sequence, res.Repaired)
	return nil
}
