// Package archive creates the Lambda layer zip from the build directory.
//
// The build directory contains a single "python/" subtree (populated by
// the installer), and every archive entry is stored relative to the
// build root, so extracted entries land under the path prefix the
// Python runtimes expect ("python/...").
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// CreateZip walks buildDir and writes a deflate-compressed zip archive
// to outputPath. Entry names are the walked paths relative to buildDir,
// so a build directory containing "python/requests/..." produces
// archive entries "python/requests/...".
//
// The output file is created outside the build directory, so it
// survives the deferred cleanup of the temporary build tree, both for
// --no-upload builds and for retaining the artifact after a failed
// upload.
//
// filepath.WalkDir visits entries in lexical order, which makes the
// archive layout deterministic for a given dependency set.
//
// Returns a model.CLIError with ExitArchiveFailed on any I/O error;
// a partially written archive is removed before returning.
func CreateZip(buildDir, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return model.WrapCLIError(
			model.ExitArchiveFailed,
			fmt.Sprintf("failed to create archive %q", outputPath),
			err,
		)
	}

	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Directories are implied by the file entry names; zip has no
		// need for explicit directory entries here.
		if d.IsDir() {
			return nil
		}
		return addFile(zw, buildDir, path)
	})

	// Close the zip writer first (it flushes the central directory),
	// then the file. Both must succeed for a valid archive.
	if err := zw.Close(); walkErr == nil {
		walkErr = err
	}
	if err := out.Close(); walkErr == nil {
		walkErr = err
	}

	if walkErr != nil {
		// Leave no half-written artifact behind.
		_ = os.Remove(outputPath)
		return model.WrapCLIError(
			model.ExitArchiveFailed,
			fmt.Sprintf("failed to write archive %q", outputPath),
			walkErr,
		)
	}

	return nil
}

// addFile writes a single file into the archive, stored relative to
// buildDir with forward-slash separators (the zip spec requires "/"
// regardless of host OS).
func addFile(zw *zip.Writer, buildDir, path string) error {
	rel, err := filepath.Rel(buildDir, path)
	if err != nil {
		return err
	}
	name := filepath.ToSlash(rel)

	// Stat, not Lstat: the content below comes from os.Open, which
	// follows symlinks, so the header must describe the resolved file
	// for mode bits and bytes to agree.
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(w, f)
	return err
}

// ListEntries returns the entry names of an existing zip archive,
// in archive order. Used by tests and by verbose build output to show
// what was packaged.
func ListEntries(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %q: %w", archivePath, err)
	}
	defer func() { _ = r.Close() }()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// TopLevelPackages returns the distinct second path segments of entries
// under the given prefix, i.e. the importable package and module names
// placed directly under "python/". Dist-info metadata directories are
// skipped. Used to summarize the archive contents after a build.
func TopLevelPackages(entries []string, prefix string) []string {
	seen := make(map[string]bool)
	var packages []string

	for _, entry := range entries {
		rest, ok := strings.CutPrefix(entry, prefix+"/")
		if !ok {
			continue
		}

		top := rest
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			top = rest[:idx]
		}
		if top == "" || strings.HasSuffix(top, ".dist-info") || top == "__pycache__" {
			continue
		}
		if !seen[top] {
			seen[top] = true
			packages = append(packages, top)
		}
	}

	return packages
}
