package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"registry", "import"},
		{"reresolve"},
		{"events", "list"},
		{"decisions", "stats"},
		{"index", "canonical"},
		{"evaluate"},
		{"purge"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRegistryImportDryRun(t *testing.T) {
	file := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
coverages:
  - code: CA_SURGERY
    display_name: 암수술비
    family: cancer
    event_type: SURGERY
aliases:
  - alias: 암수술 특약
    canonical_code: CA_SURGERY
`), 0o600))

	rootCmd.SetArgs([]string{"registry", "import", file, "--dry-run"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	assert.NoError(t, rootCmd.Execute())
}
