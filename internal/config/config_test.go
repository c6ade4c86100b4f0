package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plcforge/plcc/internal/diag"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "plcc.yaml"))
	require.NoError(t, err)
	require.Nil(t, f.BMCMaxDepth)
	require.Equal(t, diag.LangZH, f.Language())
}

func TestLoadParsesBMCMaxDepthAndLanguage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plcc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bmc_max_depth: 12\ndiagnostic_language: en\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f.BMCMaxDepth)
	require.Equal(t, 12, *f.BMCMaxDepth)
	require.Equal(t, diag.LangEN, f.Language())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plcc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bmc_max_depth: [this is not an int\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
