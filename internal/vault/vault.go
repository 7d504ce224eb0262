// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package vault

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/metrics"
)

const dirPerm fs.FileMode = 0o750

// Outcome is the result of one vault mirror.
type Outcome struct {
	Success           bool     `json:"success"`
	DirectoriesCopied int      `json:"directories_copied"`
	FilesCopied       int      `json:"files_copied"`
	FilesSkipped      int      `json:"files_skipped"`
	Warnings          []string `json:"warnings,omitempty"`
	ErrorMessage      string   `json:"error_message,omitempty"`
}

// Degraded reports a successful mirror that skipped something.
func (o Outcome) Degraded() bool {
	return o.Success && len(o.Warnings) > 0
}

// Backup mirrors Source into Destination.
type Backup struct {
	source      string
	destination string
	fs          FileSystem
	logger      zerolog.Logger
}

// Option configures a Backup.
type Option func(*Backup)

// WithFileSystem replaces the local disk implementation.
func WithFileSystem(fsys FileSystem) Option {
	return func(b *Backup) {
		b.fs = fsys
	}
}

// New creates a vault backup from source into destination.
func New(source, destination string, opts ...Option) *Backup {
	b := &Backup{
		source:      source,
		destination: destination,
		fs:          OSFileSystem{},
		logger:      logging.WithComponent("vault"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// run carries the per-invocation state of one mirror.
type run struct {
	*Backup
	ctx     context.Context
	log     zerolog.Logger
	outcome Outcome
}

// Run mirrors the vault. The returned error is non-nil only when ctx ended
// during the walk; every other failure is reported through Outcome.
func (b *Backup) Run(ctx context.Context) (Outcome, error) {
	start := time.Now()
	log := logging.CtxWith(ctx).Str("component", "vault").Logger()

	if b.source == "" {
		log.Error().Msg("Vault source directory is not configured")
		return Outcome{ErrorMessage: "vault source directory is not configured"}, nil
	}
	info, err := b.fs.Stat(b.source)
	if err != nil || !info.IsDir() {
		log.Error().Str("source", b.source).Msg("Vault source directory does not exist")
		return Outcome{ErrorMessage: fmt.Sprintf("vault source directory %s does not exist", b.source)}, nil
	}

	if err := b.fs.MkdirAll(b.destination, dirPerm); err != nil {
		log.Error().Err(err).Str("destination", b.destination).Msg("Failed to create vault archive directory")
		return Outcome{ErrorMessage: fmt.Sprintf("create destination: %v", err)}, nil
	}

	r := &run{Backup: b, ctx: ctx, log: log}
	log.Info().Str("source", b.source).Str("destination", b.destination).Msg("Vault mirror started")

	if err := r.mirror(b.source, b.destination); err != nil {
		if ctx.Err() != nil {
			log.Warn().Err(context.Cause(ctx)).Msg("Vault mirror cancelled")
			return Outcome{}, fmt.Errorf("vault mirror: %w", ctx.Err())
		}
		r.warn(fmt.Sprintf("cannot list %s: %v", b.source, err))
	}

	if err := b.fs.SyncDir(b.destination); err != nil {
		log.Debug().Err(err).Msg("Failed to sync vault archive directory")
	}

	r.outcome.Success = true
	metrics.RecordVaultOutcome(r.outcome.FilesCopied, r.outcome.FilesSkipped, len(r.outcome.Warnings))

	log.Info().
		Int("directories", r.outcome.DirectoriesCopied).
		Int("files_copied", r.outcome.FilesCopied).
		Int("files_skipped", r.outcome.FilesSkipped).
		Int("warnings", len(r.outcome.Warnings)).
		Dur("duration", time.Since(start)).
		Msg("Vault mirror finished")

	return r.outcome, nil
}

// mirror copies one directory level and recurses. It returns an error only
// when the directory itself cannot be listed or ctx has ended.
func (r *run) mirror(src, dst string) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}

	entries, err := r.fs.ReadDir(src)
	if err != nil {
		return err
	}

	// Names already claimed in dst in this pass.
	claimed := make(map[string]string, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		target, ok := r.claim(claimed, src, name)
		if !ok {
			continue
		}

		childSrc := filepath.Join(src, name)
		childDst := filepath.Join(dst, target)
		if err := r.fs.MkdirAll(childDst, dirPerm); err != nil {
			r.warn(fmt.Sprintf("cannot create directory %s: %v", childDst, err))
			continue
		}
		if err := r.mirror(childSrc, childDst); err != nil {
			if r.ctx.Err() != nil {
				return err
			}
			r.warn(fmt.Sprintf("cannot list %s: %v", childSrc, err))
			continue
		}
		r.outcome.DirectoriesCopied++
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		from := filepath.Join(src, name)
		if reason := r.uncopyable(from, entry); reason != "" {
			r.outcome.FilesSkipped++
			r.warn(fmt.Sprintf("skipping %s: %s", from, reason))
			continue
		}
		target, ok := r.claim(claimed, src, name)
		if !ok {
			r.outcome.FilesSkipped++
			continue
		}

		to := filepath.Join(dst, target)
		if err := r.fs.CopyFile(from, to); err != nil {
			r.outcome.FilesSkipped++
			r.warn(fmt.Sprintf("cannot copy %s: %v", from, err))
			continue
		}
		r.outcome.FilesCopied++
	}

	return nil
}

// uncopyable returns why a non-directory entry cannot be mirrored, or ""
// when it can. Symlinks to regular files are copied by content. Symlinks to
// directories are not followed since they may point back into the vault.
func (r *run) uncopyable(path string, entry fs.DirEntry) string {
	mode := entry.Type()
	switch {
	case mode.IsRegular():
		return ""
	case mode&fs.ModeSymlink == 0:
		return "not a regular file (" + mode.String() + ")"
	}

	info, err := r.fs.Stat(path)
	switch {
	case err != nil:
		return fmt.Sprintf("broken symlink: %v", err)
	case info.IsDir():
		return "symlink to a directory is not followed"
	case !info.Mode().IsRegular():
		return "symlink to a special file"
	default:
		return ""
	}
}

// claim reserves the sanitized form of name in the current directory. Two
// source names that sanitize to the same string would overwrite each other,
// so the second one is reported and skipped.
func (r *run) claim(claimed map[string]string, dir, name string) (string, bool) {
	target := Sanitize(name)
	if prev, ok := claimed[target]; ok {
		r.warn(fmt.Sprintf("%s: %s and %s both map to %s, skipping the latter",
			dir, strconv.Quote(prev), strconv.Quote(name), strconv.Quote(target)))
		return "", false
	}
	claimed[target] = name
	if target != name {
		r.log.Debug().Str("name", strconv.Quote(name)).Str("sanitized", target).Msg("Renamed vault entry")
	}
	return target, true
}

func (r *run) warn(msg string) {
	r.outcome.Warnings = append(r.outcome.Warnings, msg)
	r.log.Warn().Msg(msg)
}
