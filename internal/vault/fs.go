// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package vault

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the set of filesystem operations the mirror needs. Tests
// substitute an implementation that fails on chosen paths.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	MkdirAll(path string, perm fs.FileMode) error
	CopyFile(src, dst string) error
	SyncDir(path string) error
}

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

// Stat implements FileSystem.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// ReadDir implements FileSystem.
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// MkdirAll implements FileSystem.
func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// CopyFile copies src to dst, preserving the permission bits, and fsyncs the
// result before returning. A failed copy removes the partial destination.
//
//nolint:gosec // G304: paths come from the configured vault and archive roots
func (OSFileSystem) CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close() //nolint:errcheck // read-only handle

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	destFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if err := copyAndCloseDestFile(destFile, sourceFile); err != nil {
		os.Remove(dst) //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return nil
}

// SyncDir fsyncs a directory so newly created entries survive a crash.
func (OSFileSystem) SyncDir(path string) error {
	dir, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	syncErr := dir.Sync()
	closeErr := dir.Close()
	return errors.Join(syncErr, closeErr)
}

func copyAndCloseDestFile(destFile *os.File, sourceFile io.Reader) error {
	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	if err := destFile.Sync(); err != nil {
		destFile.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return destFile.Close()
}
