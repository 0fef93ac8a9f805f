// Package fsops provides filesystem operations with safety guarantees.
//
// All filesystem access in mosaic goes through the FS interface: locating
// source images, reading colour files, writing rendered sheets and removing
// intermediate sheets once they have been composed.
//
// Key features:
//   - Atomic writes using temp file + rename
//   - Readability checks that actually open the file
//   - Idempotent removal (a missing file is not an error)
//   - Identifier validation for names that become file names
package fsops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS provides an abstraction for filesystem operations.
type FS interface {
	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// Readable opens and closes path, returning the error if it cannot be read.
	Readable(path string) error

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// Rename moves oldpath to newpath, replacing newpath if it exists.
	Rename(oldpath, newpath string) error

	// Remove removes a file. Removing a missing file succeeds.
	Remove(path string) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// ValidateIdentifier validates an identifier for use as a file name.
	ValidateIdentifier(id string) error
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

// Exists checks if a path exists.
func (fs *RealFS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Readable returns nil if path is a regular file that can be opened.
func (fs *RealFS) Readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// ReadFile reads the entire contents of a file.
func (fs *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (fs *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	// Create temp file in the same directory as target
	tmpFile, err := os.CreateTemp(dir, ".mosaic-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Success - don't clean up temp file
	tmpFile = nil
	return nil
}

// Rename moves oldpath to newpath.
func (fs *RealFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Remove removes a file. A missing file is treated as already removed.
func (fs *RealFS) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MkdirAll creates a directory and all parent directories.
func (fs *RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ValidateIdentifier validates an identifier (e.g., a bucket key or item id)
// that will be used as part of a file name.
func (fs *RealFS) ValidateIdentifier(id string) error {
	return ValidateIdentifier(id)
}

// ValidateIdentifier rejects empty identifiers, path separators and
// traversal attempts.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("invalid identifier: empty")
	}

	if strings.Contains(id, string(filepath.Separator)) || strings.Contains(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("invalid identifier: must not contain path separators")
	}

	if id == "." || id == ".." || strings.HasPrefix(id, "..") {
		return fmt.Errorf("invalid identifier: path traversal not allowed")
	}

	if strings.ContainsRune(id, 0) {
		return fmt.Errorf("invalid identifier: contains NUL byte")
	}

	return nil
}
