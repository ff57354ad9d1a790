package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codegrove/structgrep/pkg/lang"
	"github.com/codegrove/structgrep/pkg/match"
)

// exitCodeValidationFailure is the exit code for validation failures.
const exitCodeValidationFailure = 2

func validateCmd() *cobra.Command {
	var language string

	var colorize, nocolor bool

	cmd := &cobra.Command{
		Use:   "validate <rule.yaml|->",
		Short: "Validate a structgrep rule document",
		Long: `Validate a rule document's schema and compile it against a language's grammar.

Examples:
  structgrep validate --language go rules/no-fmt-println.yaml
  structgrep validate --language javascript - < rule.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0], language, colorize, nocolor)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "language to compile the rule against (required)")
	cmd.Flags().BoolVar(&colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	_ = cmd.MarkFlagRequired("language")

	return cmd
}

func runValidate(inputPath, language string, colorize, nocolor bool) error {
	if nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	} else if colorize {
		color.NoColor = false //nolint:reassign // intentional override of library global
	}

	reader, label := loadValidateInput(inputPath)

	source, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", label, err)
	}

	registry := lang.NewRegistry()

	l, err := registry.Get(language)
	if err != nil {
		return fmt.Errorf("unknown language %q: %w", language, err)
	}

	rc, err := match.Compile(l, source)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stdout, "rule is invalid (%s)\n", label)
		fmt.Fprintf(os.Stdout, "\n%v\n", err)
		os.Exit(exitCodeValidationFailure)

		return nil
	}

	color.New(color.FgGreen).Fprintf(os.Stdout, "rule is valid (%s)\n", label)

	if rc.Fix != nil {
		fmt.Fprintln(os.Stdout, "  has fix: yes")
	} else {
		fmt.Fprintln(os.Stdout, "  has fix: no")
	}

	if len(rc.Constraints) > 0 {
		fmt.Fprintf(os.Stdout, "  constraints: %d\n", len(rc.Constraints))
	}

	if len(rc.Utils) > 0 {
		fmt.Fprintf(os.Stdout, "  utils: %d\n", len(rc.Utils))
	}

	return nil
}

//nolint:nonamedreturns // named returns needed for gocritic unnamedResult
func loadValidateInput(inputPath string) (reader io.Reader, label string) {
	if inputPath == "-" {
		return os.Stdin, "stdin"
	}

	f, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open input: %v\n", err)
		os.Exit(exitCodeValidationFailure)
	}

	return f, inputPath
}
