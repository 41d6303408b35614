package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupBuildDir creates a temp build directory that mimics the result
// of a pip install into <dir>/python: a package directory with module
// files plus a dist-info metadata directory.
func setupBuildDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"python/requests/__init__.py":               "__version__ = '2.31.0'\n",
		"python/requests/api.py":                    "def get(url): ...\n",
		"python/requests-2.31.0.dist-info/METADATA": "Name: requests\n",
		"python/six.py":                             "# single-module distribution\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// TestCreateZip verifies that every file is archived with a path
// relative to the build root, preserving the "python/" layer prefix.
func TestCreateZip(t *testing.T) {
	buildDir := setupBuildDir(t)
	outputPath := filepath.Join(t.TempDir(), "deps.zip")

	err := CreateZip(buildDir, outputPath)
	require.NoError(t, err)

	entries, err := ListEntries(outputPath)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"python/requests/__init__.py",
		"python/requests/api.py",
		"python/requests-2.31.0.dist-info/METADATA",
		"python/six.py",
	}, entries)

	// Every entry must be rooted under the runtime's layer prefix.
	for _, name := range entries {
		assert.Regexp(t, "^python/", name)
	}
}

// TestCreateZip_ContentRoundTrip verifies that file contents survive
// compression, by reading one member back out of the archive.
func TestCreateZip_ContentRoundTrip(t *testing.T) {
	buildDir := setupBuildDir(t)
	outputPath := filepath.Join(t.TempDir(), "deps.zip")
	require.NoError(t, CreateZip(buildDir, outputPath))

	r, err := zip.OpenReader(outputPath)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name != "python/six.py" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "# single-module distribution\n", string(content))
		assert.Equal(t, zip.Deflate, f.Method)
		return
	}
	t.Fatal("python/six.py not found in archive")
}

// TestCreateZip_EmptyBuildDir verifies that an empty build directory
// still produces a valid (empty) archive rather than an error. The
// pipeline validates the dependency set before this point, so an empty
// archive only occurs when pip legitimately installed nothing.
func TestCreateZip_EmptyBuildDir(t *testing.T) {
	buildDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(buildDir, "python"), 0755))
	outputPath := filepath.Join(t.TempDir(), "empty.zip")

	require.NoError(t, CreateZip(buildDir, outputPath))

	entries, err := ListEntries(outputPath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestCreateZip_BadOutputPath verifies the error path when the archive
// cannot be created, and that no stray file is left behind.
func TestCreateZip_BadOutputPath(t *testing.T) {
	buildDir := setupBuildDir(t)
	outputPath := filepath.Join(t.TempDir(), "no-such-dir", "deps.zip")

	err := CreateZip(buildDir, outputPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create archive")

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr))
}

// TestCreateZip_SymlinkStoredAsFile verifies that a symlink in the
// installed tree is archived as a regular file with the target's
// contents. Pip occasionally leaves symlinks behind (shared objects,
// editable installs); storing symlink mode bits alongside dereferenced
// bytes would produce a corrupt entry for extractors that honor modes.
func TestCreateZip_SymlinkStoredAsFile(t *testing.T) {
	buildDir := setupBuildDir(t)
	target := filepath.Join(buildDir, "python", "six.py")
	link := filepath.Join(buildDir, "python", "six_link.py")
	require.NoError(t, os.Symlink(target, link))

	outputPath := filepath.Join(t.TempDir(), "deps.zip")
	require.NoError(t, CreateZip(buildDir, outputPath))

	r, err := zip.OpenReader(outputPath)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name != "python/six_link.py" {
			continue
		}
		assert.True(t, f.Mode().IsRegular(), "symlink must be stored as a regular file")

		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "# single-module distribution\n", string(content))
		return
	}
	t.Fatal("python/six_link.py not found in archive")
}

// TestTopLevelPackages verifies the archive summary helper: importable
// names under the prefix, with metadata directories filtered out.
func TestTopLevelPackages(t *testing.T) {
	entries := []string{
		"python/requests/__init__.py",
		"python/requests/api.py",
		"python/requests-2.31.0.dist-info/METADATA",
		"python/six.py",
		"python/__pycache__/six.cpython-310.pyc",
		"unrelated/file.txt",
	}

	packages := TopLevelPackages(entries, "python")
	assert.Equal(t, []string{"requests", "six.py"}, packages)
}
