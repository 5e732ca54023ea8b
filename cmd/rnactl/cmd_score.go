package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/GraphaRNA-web/GraphaRNA-web/internal/rna"
	"github.com/spf13/cobra"
)

func newScoreCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "score <sequence> <reference> <model>",
		Short: "Compare a model dot-bracket structure with a reference",
		Long: `Compute F1 and interaction network fidelity (INF) of the model structure
against the reference. Strands may be separated by spaces or hyphens.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := validator(cmd)
			if err != nil {
				return err
			}
			acc, err := score(v, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(stdout, acc)
			}
			fmt.Fprintf(stdout, "F1   %.4f\nINF  %.4f\nTP %d  FP %d  FN %d\n", acc.F1, acc.INF, acc.TP, acc.FP, acc.FN)
			return nil
		},
	}
}

func score(v *rna.Validator, seq, reference, model string) (rna.Accuracy, error) {
	norm := strings.NewReplacer("-", " ")
	seq = norm.Replace(seq)

	target, err := v.Pairs(seq, norm.Replace(reference))
	if err != nil {
		return rna.Accuracy{}, fmt.Errorf("reference: %w", err)
	}
	produced, err := v.Pairs(seq, norm.Replace(model))
	if err != nil {
		return rna.Accuracy{}, fmt.Errorf("model: %w", err)
	}
	return rna.Score(target, produced), nil
}
