//go:build ignore
// +build ignore

// Command flag_broken_examples reads the JSON report verify_examples.go
// writes and annotates each failing .plc fixture with a warning comment, so
// a fixture that stops verifying cleanly is visible in the file itself.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plcforge/plcc/scripts/internal/reporttypes"
)

func main() {
	reportFile, err := os.Open("examples_report.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading report: %v\n", err)
		fmt.Println("Run 'go run scripts/verify_examples.go --json > examples_report.json' first")
		os.Exit(1)
	}
	defer reportFile.Close()

	var report reporttypes.VerificationReport
	if err := json.NewDecoder(reportFile).Decode(&report); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding JSON: %v\n", err)
		os.Exit(1)
	}

	updated := 0
	for _, result := range report.Results {
		if result.Status == "failed" {
			filePath := filepath.Join("examples", result.File)
			if err := addWarningHeader(filePath); err != nil {
				fmt.Fprintf(os.Stderr, "Error updating %s: %v\n", result.File, err)
			} else {
				fmt.Printf("Added warning to %s\n", result.File)
				updated++
			}
		}
	}

	fmt.Printf("\nUpdated %d files with warning headers\n", updated)
}

func addWarningHeader(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	contentStr := string(content)

	if strings.Contains(contentStr, "WARNING: this fixture does not currently verify cleanly") {
		return nil
	}

	warning := `# WARNING: this fixture does not currently verify cleanly
# It demonstrates a scenario the verifiers reject or a planned feature not
# yet supported by the loader. See examples_report.json for the failure.

`

	if strings.HasPrefix(contentStr, "#") {
		lines := strings.Split(contentStr, "\n")
		i := 0
		for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "#") {
			i++
		}
		newLines := append(lines[:i], strings.Split(warning, "\n")...)
		newLines = append(newLines, lines[i:]...)
		contentStr = strings.Join(newLines, "\n")
	} else {
		contentStr = warning + contentStr
	}

	return os.WriteFile(filename, []byte(contentStr), 0644)
}
