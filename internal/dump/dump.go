// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

// Package dump snapshots the PostgreSQL database with pg_dump.
//
// The dump is plain SQL with DROP ... IF EXISTS before every CREATE, no owner
// and no privilege statements, so it restores into any empty database. It is
// written to a temporary file beside the target and renamed into place only
// after pg_dump exits cleanly, so a failed run never replaces the last good
// dump.
package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stronghold/internal/config"
	"github.com/tomtom215/stronghold/internal/logging"
)

// maxLoggedStderr bounds how much pg_dump stderr is attached to a log line.
const maxLoggedStderr = 4096

// ConnConfig identifies the database to dump.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ConnConfigFrom extracts connection settings from the loaded configuration.
func ConnConfigFrom(cfg config.DatabaseConfig) ConnConfig {
	return ConnConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Name:     cfg.Name,
		SSLMode:  cfg.SSLMode,
	}
}

// URL returns a postgres:// connection string for pgx.
func (c ConnConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// pinger is the subset of *pgx.Conn used by the preflight check.
type pinger interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config configures a Dumper.
type Config struct {
	// Binary is the pg_dump executable. Default: pg_dump
	Binary string

	// Timeout bounds the whole dump. Default: 120s
	Timeout time.Duration

	// PreflightPing connects with pgx before running pg_dump so that an
	// unreachable database fails fast with a clear error.
	PreflightPing bool
}

// Dumper runs pg_dump.
type Dumper struct {
	cfg     Config
	logger  zerolog.Logger
	connect func(ctx context.Context, conn ConnConfig) (pinger, error)
}

// New creates a Dumper.
func New(cfg Config) *Dumper {
	if cfg.Binary == "" {
		cfg.Binary = "pg_dump"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Dumper{
		cfg:     cfg,
		logger:  logging.WithComponent("dump"),
		connect: pgxConnect,
	}
}

// NewFromConfig creates a Dumper from the database section of the configuration.
func NewFromConfig(cfg config.DatabaseConfig) *Dumper {
	return New(Config{
		Binary:        cfg.DumpBinary,
		Timeout:       cfg.DumpTimeout,
		PreflightPing: cfg.PreflightPing,
	})
}

func pgxConnect(ctx context.Context, conn ConnConfig) (pinger, error) {
	c, err := pgx.Connect(ctx, conn.URL())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Backup dumps the database described by conn to outputPath. It reports false
// for every failure, including timeouts. The error is non-nil only when ctx
// was cancelled by the caller.
func (d *Dumper) Backup(ctx context.Context, conn ConnConfig, outputPath string) (bool, error) {
	start := time.Now()
	log := logging.CtxWith(ctx).Str("component", "dump").
		Str("host", conn.Host).
		Str("database", conn.Name).
		Logger()

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if d.cfg.PreflightPing {
		if err := d.ping(runCtx, conn); err != nil {
			if ctx.Err() != nil {
				return false, fmt.Errorf("database dump: %w", ctx.Err())
			}
			log.Error().Err(err).Msg("Database is not reachable, skipping pg_dump")
			return false, nil
		}
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Failed to create dump directory")
		return false, nil
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create temporary dump file")
		return false, nil
	}
	tmpPath := tmp.Name()
	tmp.Close() //nolint:errcheck // pg_dump reopens it by name

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup
		}
	}()

	//nolint:gosec // G204: binary and arguments come from operator configuration
	cmd := exec.CommandContext(runCtx, d.cfg.Binary, d.args(conn, tmpPath)...)
	cmd.Env = dumpEnv(conn)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	duration := time.Since(start)

	if ctx.Err() != nil {
		log.Warn().Err(context.Cause(ctx)).Msg("Database dump cancelled")
		return false, fmt.Errorf("database dump: %w", ctx.Err())
	}

	if err != nil {
		event := log.Error().Err(err).Dur("duration", duration)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			event = event.Dur("timeout", d.cfg.Timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			event = event.Int("exit_code", exitErr.ExitCode())
		}
		event.Str("stderr", truncate(stderr.String())).Msg("pg_dump failed")
		return false, nil
	}

	if stderr.Len() > 0 {
		log.Debug().Str("stderr", truncate(stderr.String())).Msg("pg_dump reported diagnostics")
	}

	if err := commit(tmpPath, outputPath); err != nil {
		log.Error().Err(err).Msg("Failed to move dump into place")
		return false, nil
	}
	committed = true

	log.Info().Str("path", outputPath).Dur("duration", duration).Msg("Database dump finished")
	return true, nil
}

func (d *Dumper) ping(ctx context.Context, conn ConnConfig) error {
	c, err := d.connect(ctx, conn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close(context.WithoutCancel(ctx)) //nolint:errcheck // connection is discarded

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// args builds the pg_dump command line. The password is never included.
func (d *Dumper) args(conn ConnConfig, file string) []string {
	return []string{
		"--host=" + conn.Host,
		"--port=" + strconv.Itoa(conn.Port),
		"--username=" + conn.User,
		"--dbname=" + conn.Name,
		"--format=plain",
		"--clean",
		"--if-exists",
		"--no-owner",
		"--no-privileges",
		"--no-password",
		"--file=" + file,
	}
}

// dumpEnv returns the child environment with libpq credentials added.
func dumpEnv(conn ConnConfig) []string {
	env := os.Environ()
	if conn.Password != "" {
		env = append(env, "PGPASSWORD="+conn.Password)
	}
	if conn.SSLMode != "" {
		env = append(env, "PGSSLMODE="+conn.SSLMode)
	}
	return env
}

// commit fsyncs tmp and renames it over dst.
//
//nolint:gosec // G304: path is created by this package
func commit(tmp, dst string) error {
	f, err := os.OpenFile(tmp, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0o640); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	if dir, err := os.Open(filepath.Dir(dst)); err == nil {
		dir.Sync()  //nolint:errcheck // directory fsync is best effort
		dir.Close() //nolint:errcheck // read-only handle
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLoggedStderr {
		return s
	}
	return s[:maxLoggedStderr] + "...(truncated)"
}
