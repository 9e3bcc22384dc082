package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))

	name, err := readModulePath(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	assert.Equal(t, modulePath, name)
}

func TestGetProjectRootValidated(t *testing.T) {
	root, err := GetProjectRootValidated()
	require.NoError(t, err)
	assert.True(t, DirExists(filepath.Join(root, "internal", "barcode")))
}

func TestValidateProjectRootRejects(t *testing.T) {
	assert.Error(t, ValidateProjectRoot(t.TempDir()), "no go.mod")

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "go.mod"), []byte("module example.com/other\n\ngo 1.25\n"), 0o600))
	err := ValidateProjectRoot(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "example.com/other")

	fake := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(fake, "go.mod"), []byte("module "+modulePath+"\n"), 0o600))
	err = ValidateProjectRoot(fake)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestReadModulePathWithoutDirective(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.mod")
	require.NoError(t, os.WriteFile(path, []byte("go 1.25\n"), 0o600))
	_, err := readModulePath(path)
	assert.Error(t, err)
}

func TestEnsureDirAndExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames", "nested")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists("/non/existent/file"))
	assert.False(t, DirExists("/non/existent/dir"))
}
