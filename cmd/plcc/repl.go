package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/plcforge/plcc/internal/loader"
	"github.com/plcforge/plcc/internal/pipeline"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl <file.plc>",
		Short: "Load a program and re-run the verification pipeline on each Enter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runRepl(args[0])
			return nil
		},
	}
}

// runRepl loads path once, then re-checks it on every Enter so an operator
// editing the file in another window can watch the verification summary
// converge without re-invoking the CLI.
func runRepl(path string) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetMultiLineMode(false)

	historyFile := filepath.Join(os.TempDir(), ".plcc_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("%s %s\n", bold("plcc repl"), path)
	fmt.Println("press Enter to re-check, Ctrl-D to exit")

	cfg := loadConfig()
	for {
		_, err := line.Prompt("plcc> ")
		if err == io.EOF {
			fmt.Println("\n" + bold("goodbye"))
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
			continue
		}
		line.AppendHistory("")

		prog, err := loader.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
			continue
		}

		lang := resolveLanguage(cfg)
		result := pipeline.Run(pipeline.Config{
			BMCMaxDepth: resolveBMCMaxDepth(cfg),
			Language:    lang,
		}, pipeline.Source{Program: prog, Filename: path})

		printDiagnostics(result, lang)
		printSummary(result.Summary)
	}
}
