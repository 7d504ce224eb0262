// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stronghold/internal/config"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/metrics"
	"github.com/tomtom215/stronghold/internal/notify"
)

// Outcome classifies a Sync.
type Outcome string

const (
	OutcomeCommitted     Outcome = "committed"
	OutcomeNoChanges     Outcome = "no_changes"
	OutcomeLockContended Outcome = "lock_contended"
	OutcomeFailed        Outcome = "failed"
)

// CommitTimeLayout formats the timestamp in backup commit messages.
const CommitTimeLayout = "2006-01-02 15:04:05"

var (
	// ErrNotRepository means the archive directory is not a git work tree.
	ErrNotRepository = errors.New("not a git work tree")

	// ErrRemoteNotFound means the configured remote does not exist.
	ErrRemoteNotFound = errors.New("git remote not found")
)

// Result is the outcome of one Sync.
type Result struct {
	Outcome       Outcome `json:"outcome"`
	CommitMessage string  `json:"commit_message,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// OK reports whether the step succeeded.
func (r Result) OK() bool {
	return r.Outcome == OutcomeCommitted || r.Outcome == OutcomeNoChanges
}

// Config configures a Repository.
type Config struct {
	Dir            string
	Remote         string
	Branch         string
	LockStaleAfter time.Duration
	Binary         string
	CommandTimeout time.Duration
	PushTimeout    time.Duration
	AuthorName     string
	AuthorEmail    string
	UsernameEnv    string
	TokenEnv       string
}

// ConfigFrom builds a Config for the archive at dir.
func ConfigFrom(dir string, g config.GitConfig) Config {
	return Config{
		Dir:            dir,
		Remote:         g.Remote,
		Branch:         g.Branch,
		LockStaleAfter: g.LockStaleAfter,
		Binary:         g.Binary,
		CommandTimeout: g.CommandTimeout,
		PushTimeout:    g.PushTimeout,
		AuthorName:     g.AuthorName,
		AuthorEmail:    g.AuthorEmail,
		UsernameEnv:    g.UsernameEnv,
		TokenEnv:       g.TokenEnv,
	}
}

// Repository is the archive work tree.
type Repository struct {
	cfg      Config
	notifier notify.Notifier
	clock    clock.Clock
	getenv   func(string) string
	logger   zerolog.Logger
}

// NewRepository creates a Repository. notifier and clk may be nil.
func NewRepository(cfg Config, notifier notify.Notifier, clk clock.Clock) *Repository {
	if cfg.Binary == "" {
		cfg.Binary = "git"
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.LockStaleAfter <= 0 {
		cfg.LockStaleAfter = 10 * time.Minute
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 60 * time.Second
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 120 * time.Second
	}
	if cfg.UsernameEnv == "" {
		cfg.UsernameEnv = "GIT_USERNAME"
	}
	if cfg.TokenEnv == "" {
		cfg.TokenEnv = "GIT_TOKEN"
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Repository{
		cfg:      cfg,
		notifier: notifier,
		clock:    clk,
		getenv:   os.Getenv,
		logger:   logging.WithComponent("gitops"),
	}
}

// CommitAndPush runs Sync and reports whether it succeeded. A repository
// with nothing to commit is a success.
func (r *Repository) CommitAndPush(ctx context.Context) (bool, error) {
	res, err := r.Sync(ctx)
	if err != nil {
		return false, err
	}
	return res.OK(), nil
}

// Sync stages, commits and pushes the archive. The error is non-nil only
// when ctx ended; every other failure is reported in Result.
func (r *Repository) Sync(ctx context.Context) (Result, error) {
	log := logging.CtxWith(ctx).Str("component", "gitops").Str("dir", r.cfg.Dir).Logger()

	res, err := r.sync(ctx, log)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Err(context.Cause(ctx)).Msg("Git sync cancelled")
			return Result{}, fmt.Errorf("git sync: %w", ctx.Err())
		}
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		log.Error().Err(err).Msg("Git sync failed")
	}

	metrics.RecordGitOutcome(string(res.Outcome))
	return res, nil
}

func (r *Repository) sync(ctx context.Context, log zerolog.Logger) (Result, error) {
	gitDir, err := r.gitDir(ctx)
	if err != nil {
		return Result{}, err
	}

	if contended, err := r.handleLock(ctx, log, gitDir); err != nil {
		return Result{}, err
	} else if contended {
		return Result{Outcome: OutcomeLockContended, Error: "index.lock is held by another git process"}, nil
	}

	if _, err := r.git(ctx, r.cfg.CommandTimeout, nil, "add", "--all"); err != nil {
		return Result{}, fmt.Errorf("stage changes: %w", err)
	}

	staged, err := r.hasStagedChanges(ctx)
	if err != nil {
		return Result{}, err
	}
	if !staged {
		log.Info().Msg("No changes to commit")
		r.pushPending(ctx, log)
		return Result{Outcome: OutcomeNoChanges}, nil
	}

	msg := CommitMessage(r.clock.Now())
	_, err = r.git(ctx, r.cfg.CommandTimeout, nil,
		"-c", "user.name="+r.cfg.AuthorName,
		"-c", "user.email="+r.cfg.AuthorEmail,
		"-c", "commit.gpgsign=false",
		"commit", "--quiet", "-m", msg)
	if err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	log.Info().Str("message", msg).Msg("Committed backup")

	if err := r.push(ctx); err != nil {
		return Result{CommitMessage: msg}, err
	}
	log.Info().Str("remote", r.cfg.Remote).Str("branch", r.cfg.Branch).Msg("Pushed backup")

	return Result{Outcome: OutcomeCommitted, CommitMessage: msg}, nil
}

// CommitMessage returns the backup commit title for t.
func CommitMessage(t time.Time) string {
	return "Automated backup - " + t.UTC().Format(CommitTimeLayout) + " UTC"
}

// gitDir validates the work tree and returns its absolute git directory.
func (r *Repository) gitDir(ctx context.Context) (string, error) {
	if info, err := os.Stat(r.cfg.Dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s: %w", r.cfg.Dir, ErrNotRepository)
	}

	out, err := r.git(ctx, r.cfg.CommandTimeout, nil, "rev-parse", "--is-inside-work-tree", "--absolute-git-dir")
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%s: %w: %w", r.cfg.Dir, ErrNotRepository, err)
	}

	lines := strings.Split(out, "\n")
	if len(lines) != 2 || strings.TrimSpace(lines[0]) != "true" {
		return "", fmt.Errorf("%s: %w", r.cfg.Dir, ErrNotRepository)
	}
	return strings.TrimSpace(lines[1]), nil
}

// handleLock removes a stale index lock and reports whether a fresh one
// blocks this run.
func (r *Repository) handleLock(ctx context.Context, log zerolog.Logger, gitDir string) (bool, error) {
	lock, err := r.inspectLock(gitDir)
	if err != nil {
		return false, fmt.Errorf("inspect index lock: %w", err)
	}
	if lock == nil {
		return false, nil
	}

	if !lock.Stale(r.cfg.LockStaleAfter) {
		log.Error().
			Str("lock", lock.Path).
			Dur("age", lock.Age).
			Dur("stale_after", r.cfg.LockStaleAfter).
			Msg("Git index is locked by another process")
		metrics.GitLockContention.Inc()
		r.notifier.Notify(ctx, notify.Message{
			Title:       "Git repository locked",
			Description: "Another git process holds the archive index lock. This backup was not committed.",
			Severity:    notify.SeverityError,
			Fields: []notify.Field{
				{Name: "Lock age", Value: lock.Age.Round(time.Second).String(), Inline: true},
				{Name: "Stale after", Value: r.cfg.LockStaleAfter.String(), Inline: true},
			},
		})
		return true, nil
	}

	if err := os.Remove(lock.Path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("remove stale index lock: %w", err)
	}

	log.Warn().Str("lock", lock.Path).Dur("age", lock.Age).Msg("Removed stale git index lock")
	metrics.GitLockRecoveries.Inc()
	r.notifier.Notify(ctx, notify.Message{
		Title:       "Stale git lock removed",
		Description: "A leftover index.lock from a crashed git process was removed.",
		Severity:    notify.SeverityWarning,
		Fields: []notify.Field{
			{Name: "Lock age", Value: lock.Age.Round(time.Second).String(), Inline: true},
		},
	})
	return false, nil
}

// hasStagedChanges runs git diff --cached --quiet, which exits 1 when the
// index differs from HEAD.
func (r *Repository) hasStagedChanges(ctx context.Context) (bool, error) {
	_, err := r.git(ctx, r.cfg.CommandTimeout, nil, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if exitCode(err) == 1 {
		return true, nil
	}
	return false, fmt.Errorf("check staged changes: %w", err)
}

func (r *Repository) remoteExists(ctx context.Context) error {
	if _, err := r.git(ctx, r.cfg.CommandTimeout, nil, "remote", "get-url", r.cfg.Remote); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%q: %w", r.cfg.Remote, ErrRemoteNotFound)
	}
	return nil
}

func (r *Repository) push(ctx context.Context) error {
	if err := r.remoteExists(ctx); err != nil {
		return err
	}

	env := r.credentialEnv()
	if env == nil {
		r.logger.Debug().Msg("No git credentials in environment, pushing unauthenticated")
	}

	refspec := "HEAD:refs/heads/" + r.cfg.Branch
	if _, err := r.git(ctx, r.cfg.PushTimeout, env, "push", "--quiet", r.cfg.Remote, refspec); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// pushPending retries the push of commits left behind by an earlier failed
// push. Failures are logged; the step still succeeds.
func (r *Repository) pushPending(ctx context.Context, log zerolog.Logger) {
	if r.remoteExists(ctx) != nil {
		return
	}

	tracking := "refs/remotes/" + r.cfg.Remote + "/" + r.cfg.Branch
	ahead := "unknown"
	if _, err := r.git(ctx, r.cfg.CommandTimeout, nil, "rev-parse", "--verify", "--quiet", tracking); err == nil {
		out, err := r.git(ctx, r.cfg.CommandTimeout, nil, "rev-list", "--count", tracking+"..HEAD")
		if err != nil {
			return
		}
		if n, _ := strconv.Atoi(out); n == 0 {
			return
		}
		ahead = out
	} else if _, err := r.git(ctx, r.cfg.CommandTimeout, nil, "rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		return
	}

	if err := r.push(ctx); err != nil {
		log.Warn().Err(err).Str("ahead", ahead).Msg("Failed to push pending commits")
		return
	}
	log.Info().Str("ahead", ahead).Msg("Pushed pending commits")
}
