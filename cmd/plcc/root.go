// Command plcc compiles and formally verifies PLC-DSL programs: it lowers
// a program's [topology]/[constraints]/[tasks] sections through the IR
// layer and runs the four independent verifiers (safety, liveness, timing,
// causality), printing the merged diagnostic list and verification summary.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/plcforge/plcc/internal/config"
	"github.com/plcforge/plcc/internal/diag"
)

var (
	flagConfig   string
	flagLang     string
	flagBMCDepth int

	bold = color.New(color.Bold).SprintFunc()
	red  = color.New(color.FgRed).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "plcc",
	Short:         "PLC-DSL compiler and formal verification toolchain",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "plcc.yaml", "path to plcc.yaml")
	rootCmd.PersistentFlags().StringVar(&flagLang, "lang", "", "diagnostic language (zh|en), overrides config and PLCC_DIAG_LANG")
	rootCmd.PersistentFlags().IntVar(&flagBMCDepth, "bmc-max-depth", 0, "override the safety verifier's BFS depth target (0 = unset)")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newExplainCmd())
	rootCmd.AddCommand(newReplCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
		os.Exit(1)
	}
}

// resolveLanguage applies the precedence §2.1/§2.3 documents: --lang flag,
// then plcc.yaml's diagnostic_language, then PLCC_DIAG_LANG, then the
// zh-language default.
func resolveLanguage(cfg config.File) diag.Language {
	switch flagLang {
	case "en":
		return diag.LangEN
	case "zh":
		return diag.LangZH
	}
	if cfg.DiagnosticLanguage != "" {
		return cfg.Language()
	}
	if lang, ok := config.LanguageFromEnv(); ok {
		return lang
	}
	return diag.LangZH
}

// resolveBMCMaxDepth applies the flag-overrides-file precedence for
// bmc_max_depth (§2.3).
func resolveBMCMaxDepth(cfg config.File) *int {
	if flagBMCDepth > 0 {
		return &flagBMCDepth
	}
	return cfg.BMCMaxDepth
}

func loadConfig() config.File {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", color.New(color.FgYellow).Sprint("warning"), err)
	}
	return cfg
}
