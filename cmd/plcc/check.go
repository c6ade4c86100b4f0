package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/plcforge/plcc/internal/diag"
	"github.com/plcforge/plcc/internal/loader"
	"github.com/plcforge/plcc/internal/pipeline"
	"github.com/plcforge/plcc/internal/schema"
)

func newCheckCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check <file.plc>",
		Short: "Run the full IR-build and verification pipeline over a program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			prog, err := loader.Load(args[0])
			if err != nil {
				return err
			}

			lang := resolveLanguage(cfg)
			result := pipeline.Run(pipeline.Config{
				BMCMaxDepth: resolveBMCMaxDepth(cfg),
				Language:    lang,
			}, pipeline.Source{Program: prog, Filename: args[0]})

			if jsonOut {
				if err := printJSON(result, lang); err != nil {
					return err
				}
			} else {
				printDiagnostics(result, lang)
				printSummary(result.Summary)
			}

			if len(result.Diagnostics) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit diagnostics and the verification summary as versioned JSON")
	return cmd
}

// printJSON writes the downstream-artifact JSON envelopes spec.md §6 calls
// for: one for the merged diagnostic list, one for the verification summary.
func printJSON(result pipeline.Result, lang diag.Language) error {
	diagsJSON, err := schema.EncodeDiagnostics(result.Diagnostics, lang)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	fmt.Println(string(diagsJSON))

	s := result.Summary
	summaryJSON, err := schema.EncodeSummary(s.Safety.Level, s.Safety.ExploredDepth, s.Safety.Warnings, s.Liveness, s.Timing, s.Causality, result.PhaseTimings)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(summaryJSON))
	return nil
}

func printDiagnostics(result pipeline.Result, lang diag.Language) {
	for i, d := range result.Diagnostics {
		fmt.Printf("%d. %s", i+1, red(d.Render(lang)))
	}
}

func printSummary(s pipeline.VerificationSummary) {
	fmt.Println(bold("verification summary"))
	fmt.Printf("  safety:    %s (explored_depth=%d)\n", s.Safety.Level, s.Safety.ExploredDepth)
	for _, w := range s.Safety.Warnings {
		fmt.Printf("             %s %s\n", color.New(color.FgYellow).Sprint("warning:"), w)
	}
	fmt.Printf("  liveness:  %s\n", s.Liveness)
	fmt.Printf("  timing:    %s\n", s.Timing)
	fmt.Printf("  causality: %s\n", s.Causality)
}
