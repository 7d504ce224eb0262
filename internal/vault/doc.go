// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package vault mirrors the per-user vault directory into the archive.
//
// The mirror is tolerant: a directory that cannot be listed, a subdirectory
// that cannot be created and a file that cannot be copied each become a
// warning, and the walk continues with the next sibling. Only a missing
// source or an uncreatable destination root fail the step.
//
// Destination names are passed through Sanitize, which maps every character
// outside printable ASCII (and the characters < > : " | ? *) to '_'. The
// mapping preserves length and is idempotent, so an archived name can always
// be traced back to its original position by position.
//
// Paths are handled as raw byte strings through the os package, so source
// names that are not valid UTF-8 are read without loss.
package vault
