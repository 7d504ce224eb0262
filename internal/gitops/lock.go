// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package gitops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LockArtifact is an index.lock file observed in the git directory.
type LockArtifact struct {
	Path string
	Age  time.Duration
}

// Stale reports whether the lock is at least threshold old. A modification
// time in the future counts as fresh.
func (l LockArtifact) Stale(threshold time.Duration) bool {
	return l.Age >= threshold
}

// inspectLock returns the index lock in gitDir, or nil if there is none.
func (r *Repository) inspectLock(gitDir string) (*LockArtifact, error) {
	path := filepath.Join(gitDir, "index.lock")
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &LockArtifact{
		Path: path,
		Age:  r.clock.Now().Sub(info.ModTime()),
	}, nil
}
