// Package builds materializes rendered documents to durable storage.
// This is part of the Imperative Shell - it owns all build-output I/O.
//
// Builds are written under <namespace>/<version>/, where namespace is the
// store's slug. Each file is written to a temporary name and renamed into
// place, so a concurrent reader never observes a partially-written
// document. Cross-file atomicity across a whole build is not provided.
package builds

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/buildcart/buildcart/internal/core/domain"
)

//go:embed assets/*
var staticAssets embed.FS

// =============================================================================
// Writer
// =============================================================================

// Writer persists rendered document trees to a billy filesystem rooted at
// the configured storage root.
type Writer struct {
	fs     billy.Filesystem
	logger *slog.Logger
}

// NewWriter creates a build writer over the given filesystem. Tests pass a
// memfs; production uses NewOSWriter.
func NewWriter(fsys billy.Filesystem, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		fs:     fsys,
		logger: logger.With("component", "build_writer"),
	}
}

// NewOSWriter creates a build writer backed by the OS filesystem rooted at
// the configured storage root.
func NewOSWriter(root string, logger *slog.Logger) *Writer {
	return NewWriter(osfs.New(root), logger)
}

// =============================================================================
// Write Tree
// =============================================================================

// WriteTree writes the rendered document set plus shared static assets to
// <namespace>/<version>/ and returns that root path. Intermediate
// directories are created as needed; a prior build at the same path is
// overwritten file by file. I/O failures wrap domain.ErrWrite and are not
// retried.
func (w *Writer) WriteTree(namespace, version string, files map[string][]byte) (string, error) {
	if namespace == "" || version == "" {
		return "", fmt.Errorf("%w: empty build namespace or version", domain.ErrWrite)
	}

	root := path.Join(namespace, version)

	for name, content := range files {
		target := path.Join(root, name)
		if err := w.writeFileAtomic(target, content); err != nil {
			return "", err
		}
	}

	if err := w.copyStaticAssets(root); err != nil {
		return "", err
	}

	w.logger.Debug("build tree written",
		"namespace", namespace,
		"version", version,
		"files", len(files),
	)

	return root, nil
}

// writeFileAtomic writes content to a temp file in the target directory and
// renames it into place. Rename gives file-level atomicity for readers.
func (w *Writer) writeFileAtomic(target string, content []byte) error {
	dir := path.Dir(target)
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", domain.ErrWrite, dir, err)
	}

	tmp, err := w.fs.TempFile(dir, ".build-")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", domain.ErrWrite, target, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", domain.ErrWrite, target, err)
	}
	if err := tmp.Close(); err != nil {
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", domain.ErrWrite, target, err)
	}

	if err := w.fs.Rename(tmpName, target); err != nil {
		w.fs.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %v", domain.ErrWrite, target, err)
	}

	return nil
}

// copyStaticAssets copies the embedded shared assets (e.g. the product
// image placeholder) into the build's assets directory.
func (w *Writer) copyStaticAssets(root string) error {
	entries, err := fs.ReadDir(staticAssets, "assets")
	if err != nil {
		return fmt.Errorf("%w: read embedded assets: %v", domain.ErrWrite, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := staticAssets.ReadFile(path.Join("assets", entry.Name()))
		if err != nil {
			return fmt.Errorf("%w: read embedded asset %s: %v", domain.ErrWrite, entry.Name(), err)
		}
		target := path.Join(root, "assets", entry.Name())
		if err := w.writeFileAtomic(target, content); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================
// Build Lookup
// =============================================================================

// BuildExists reports whether a complete build tree is still present for
// the given namespace and version. The home page is used as the marker:
// every successful build contains one.
func (w *Writer) BuildExists(namespace, version string) bool {
	_, err := w.fs.Stat(path.Join(namespace, version, "index.html"))
	return err == nil
}

// ReadFile returns one document from a written build. Used by tests and
// the preview endpoint.
func (w *Writer) ReadFile(namespace, version, name string) ([]byte, error) {
	f, err := w.fs.Open(path.Join(namespace, version, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: build file %s", domain.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrWrite, name, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrWrite, name, err)
	}
	return content, nil
}
