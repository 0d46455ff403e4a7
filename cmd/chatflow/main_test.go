package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateAndList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(`version: 1.0.0
name: onboarding
steps:
  - action: daab:message:text
    with: {text: "Name?"}
`), 0o644))

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 workflow(s) are valid!")

	out, err = execute(t, "list", "--workflows", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "onboarding")
	assert.Contains(t, out, "workflow_dispatch")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("name: broken\n"), 0o644))
	_, err = execute(t, "validate", dir)
	assert.ErrorContains(t, err, "validation failed")
}

func TestValidate_Examples(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join("..", "..", "examples", "workflows"))
	require.NoError(t, err)
	assert.Contains(t, out, "3 workflow(s) are valid!")

	dir, err := memory.LoadPlatform(filepath.Join("..", "..", "examples", "directory.yaml"))
	require.NoError(t, err)
	_, u, err := dir.FindPairRoom(context.Background(), "IT Desk")
	require.NoError(t, err)
	assert.Equal(t, "u-it", u.ID)
}

func TestSessionLs_Empty(t *testing.T) {
	out, err := execute(t, "session", "ls", "--store", "file", "--store-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No records found.")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "chatflow version dev\n", out)
}
