// Package config loads the optional plcc.yaml project file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plcforge/plcc/internal/diag"
)

// File is the plcc.yaml shape (§2.3): the only verifier-facing knob
// (bmc_max_depth) plus the diagnostic language default.
type File struct {
	BMCMaxDepth        *int   `yaml:"bmc_max_depth"`
	DiagnosticLanguage string `yaml:"diagnostic_language"`
}

// Load reads path and parses it as a File. A missing file is not an error:
// it returns a zero-value File so callers fall back to CLI flags and
// defaults.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Language resolves the file's diagnostic_language field to a diag.Language,
// defaulting to Chinese when the field is absent or unrecognized.
func (f File) Language() diag.Language {
	switch f.DiagnosticLanguage {
	case "en":
		return diag.LangEN
	default:
		return diag.LangZH
	}
}

// LanguageFromEnv reads PLCC_DIAG_LANG ("en" or "zh"), used by the CLI as
// the fallback when neither --lang nor the config file's
// diagnostic_language selects a language (§2.1).
func LanguageFromEnv() (diag.Language, bool) {
	switch os.Getenv("PLCC_DIAG_LANG") {
	case "en":
		return diag.LangEN, true
	case "zh":
		return diag.LangZH, true
	default:
		return diag.LangZH, false
	}
}
