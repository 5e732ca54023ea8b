// rnactl validates and scores RNA secondary structures offline, with the
// same rules the API applies to submissions.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version metadata injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// errExit signals a non-zero exit after the command printed its own error.
var errExit = errors.New("exit")

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintf(stderr, "rnactl: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "rnactl",
		Short:         "Validate and score RNA secondary structures",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Int("max-length", 500, "Maximum number of nucleotides")
	root.PersistentFlags().Bool("json", false, "Print machine-readable JSON")
	root.AddCommand(
		newValidateCmd(stdout, stderr),
		newScoreCmd(stdout),
		newExamplesCmd(stdout),
		newVersionCmd(stdout),
	)
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintf(stdout, "rnactl %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
