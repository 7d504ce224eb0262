// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package gitops commits and pushes the backup archive.
//
// One Sync call runs the whole version control step:
//
//  1. confirm the archive is a git work tree
//  2. inspect <git-dir>/index.lock: a lock older than the staleness threshold
//     is left over from a crashed git and is removed; a younger one means
//     another git is running, so the step stops with OutcomeLockContended
//  3. git add --all
//  4. stop with OutcomeNoChanges when nothing is staged
//  5. commit as "Automated backup - <UTC timestamp> UTC"
//  6. push the configured branch to the configured remote
//
// All git invocations go through the git CLI with a per-command timeout.
// Push credentials are read from the environment at push time and passed to
// git as an http.extraHeader through GIT_CONFIG_* variables, so they never
// appear in argv, in the remote URL or in .git/config.
package gitops
