// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package cycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/mutex/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stronghold/internal/dump"
	"github.com/tomtom215/stronghold/internal/events"
	"github.com/tomtom215/stronghold/internal/gitops"
	"github.com/tomtom215/stronghold/internal/health"
	"github.com/tomtom215/stronghold/internal/logging"
	"github.com/tomtom215/stronghold/internal/metrics"
	"github.com/tomtom215/stronghold/internal/notify"
	"github.com/tomtom215/stronghold/internal/vault"
)

var (
	// ErrServerUnavailable is the cause of a cycle skipped or cancelled
	// because the application server is unhealthy.
	ErrServerUnavailable = health.ErrServerUnavailable

	// ErrCycleInProgress means another cycle holds the cycle lock.
	ErrCycleInProgress = errors.New("backup cycle already in progress")

	// ErrArchiveLocked records a cycle whose git step found a fresh
	// index.lock left by another git process.
	ErrArchiveLocked = errors.New("archive repository is locked by another git process")
)

// VaultStep mirrors the vault. *vault.Backup implements it.
type VaultStep interface {
	Run(ctx context.Context) (vault.Outcome, error)
}

// DatabaseStep dumps the database. *dump.Dumper implements it.
type DatabaseStep interface {
	Backup(ctx context.Context, conn dump.ConnConfig, outputPath string) (bool, error)
}

// GitStep commits and pushes the archive. *gitops.Repository implements it.
type GitStep interface {
	Sync(ctx context.Context) (gitops.Result, error)
}

// SignalSource hands out the current availability signal. *health.Monitor
// implements it.
type SignalSource interface {
	CurrentSignal() *health.Signal
}

// ReportStore persists reports. *history.Store[Report] implements it.
type ReportStore interface {
	Put(ctx context.Context, id string, at time.Time, r Report) error
}

// Publisher broadcasts completed cycles. *events.Bus implements it.
type Publisher interface {
	PublishCycleCompleted(ctx context.Context, ev events.CycleCompleted) error
}

// Deps are the collaborators of a Runner. Database, History and Publisher
// may be nil.
type Deps struct {
	Vault    VaultStep
	Database DatabaseStep
	Git      GitStep
	Signals  SignalSource
	Notifier notify.Notifier
	History  ReportStore
	Events   Publisher
	Clock    clock.Clock
}

// Options configures a Runner.
type Options struct {
	// DatabaseConn and DumpPath are used when Deps.Database is set.
	DatabaseConn dump.ConnConfig
	DumpPath     string

	// LockName is the machine-wide advisory lock name.
	LockName string

	// LockTimeout is how long to wait for another process to release the
	// lock before skipping. Default: 2s
	LockTimeout time.Duration

	// NotifyOnSuccess sends a notification for clean cycles too.
	NotifyOnSuccess bool
}

// Runner executes backup cycles.
type Runner struct {
	deps    Deps
	opts    Options
	running atomic.Bool
	logger  zerolog.Logger

	lastMu sync.RWMutex
	last   *Report
}

// NewRunner creates a Runner.
func NewRunner(deps Deps, opts Options) *Runner {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if opts.LockName == "" {
		opts.LockName = "stronghold-cycle"
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 2 * time.Second
	}
	return &Runner{
		deps:   deps,
		opts:   opts,
		logger: logging.WithComponent("cycle"),
	}
}

// Running reports whether a cycle is in progress in this process.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastReport returns the most recent report produced by this Runner.
func (r *Runner) LastReport() (Report, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

// RunCycle runs one backup cycle. It returns ErrCycleInProgress when another
// cycle holds the lock and an error wrapping ErrServerUnavailable when the
// server is or becomes unavailable. A cycle cancelled by ctx returns an
// error wrapping context.Canceled. Step failures are not errors; they are
// reported in Report.Status.
func (r *Runner) RunCycle(ctx context.Context, trigger Trigger) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Report{Trigger: trigger, Status: StatusSkipped, Error: ErrCycleInProgress.Error()}, ErrCycleInProgress
	}
	defer r.running.Store(false)

	releaser, err := mutex.Acquire(mutex.Spec{
		Name:    r.opts.LockName,
		Clock:   clock.WallClock,
		Delay:   50 * time.Millisecond,
		Timeout: r.opts.LockTimeout,
		Cancel:  ctx.Done(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return Report{Trigger: trigger, Status: StatusSkipped}, fmt.Errorf("acquire cycle lock: %w", ctx.Err())
		}
		r.logger.Warn().Err(err).Str("lock", r.opts.LockName).Msg("Cycle lock is held elsewhere, skipping")
		return Report{Trigger: trigger, Status: StatusSkipped, Error: ErrCycleInProgress.Error()},
			fmt.Errorf("%w: %w", ErrCycleInProgress, err)
	}
	defer releaser.Release()

	id := logging.GenerateCorrelationID()
	ctx = logging.ContextWithCorrelationID(ctx, id)
	log := logging.CtxWith(ctx).Str("component", "cycle").Str("trigger", string(trigger)).Logger()

	report := Report{
		ID:        id,
		Trigger:   trigger,
		StartedAt: r.deps.Clock.Now(),
	}

	signal := r.deps.Signals.CurrentSignal()
	if signal.Fired() {
		log.Warn().Err(signal.Cause()).Msg("Server unavailable, skipping backup cycle")
		report.Status = StatusSkipped
		report.Error = ErrServerUnavailable.Error()
		r.finish(ctx, log, &report)
		return report, fmt.Errorf("backup cycle skipped: %w", ErrServerUnavailable)
	}

	cycleCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(signal.Context(), func() {
		cancel(ErrServerUnavailable)
	})
	defer stop()

	log.Info().Msg("Backup cycle started")

	if err := r.runSteps(cycleCtx, log, &report); err != nil {
		cause := context.Cause(cycleCtx)
		if cause == nil {
			cause = err
		}
		report.Status = StatusCancelled
		report.Error = cause.Error()
		log.Warn().Err(cause).Msg("Backup cycle cancelled")
		r.finish(ctx, log, &report)
		if errors.Is(cause, context.Canceled) {
			return report, fmt.Errorf("backup cycle cancelled: %w", cause)
		}
		return report, fmt.Errorf("backup cycle cancelled: %w: %w", context.Canceled, cause)
	}

	report.Status = report.classify()
	if report.Status == StatusSkipped {
		report.Error = ErrArchiveLocked.Error()
	}
	r.finish(ctx, log, &report)
	return report, nil
}

// runSteps runs vault, database and git in order. It returns an error only
// when ctx ended.
func (r *Runner) runSteps(ctx context.Context, log zerolog.Logger, report *Report) error {
	start := time.Now()
	outcome, err := r.deps.Vault.Run(ctx)
	if err != nil {
		return err
	}
	metrics.RecordStep("vault", outcome.Success, time.Since(start))
	report.Vault = &outcome
	if !outcome.Success {
		log.Error().Str("error", outcome.ErrorMessage).Msg("Vault step failed, continuing")
	}

	if r.deps.Database != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		start = time.Now()
		ok, err := r.deps.Database.Backup(ctx, r.opts.DatabaseConn, r.opts.DumpPath)
		if err != nil {
			return err
		}
		metrics.RecordStep("database", ok, time.Since(start))
		report.Database = &DatabaseResult{Enabled: true, OK: ok}
		if !ok {
			log.Error().Msg("Database step failed, continuing")
		}
	} else {
		report.Database = &DatabaseResult{Enabled: false}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	start = time.Now()
	res, err := r.deps.Git.Sync(ctx)
	if err != nil {
		return err
	}
	metrics.RecordStep("git", res.OK(), time.Since(start))
	report.Git = &res
	return nil
}

// finish records report everywhere. It uses a context detached from
// cancellation so a cancelled cycle is still recorded.
func (r *Runner) finish(ctx context.Context, log zerolog.Logger, report *Report) {
	report.FinishedAt = r.deps.Clock.Now()
	ctx = context.WithoutCancel(ctx)

	metrics.RecordCycle(string(report.Status), report.Duration(), report.FinishedAt)

	r.lastMu.Lock()
	saved := *report
	r.last = &saved
	r.lastMu.Unlock()

	if r.deps.History != nil {
		if err := r.deps.History.Put(ctx, report.ID, report.StartedAt, *report); err != nil {
			log.Warn().Err(err).Msg("Failed to store cycle report")
		}
	}

	if r.deps.Events != nil {
		err := r.deps.Events.PublishCycleCompleted(ctx, events.CycleCompleted{
			CycleID:    report.ID,
			Trigger:    string(report.Trigger),
			Status:     string(report.Status),
			Duration:   report.Duration(),
			FinishedAt: report.FinishedAt,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to publish cycle completion")
		}
	}

	log.Info().
		Str("status", string(report.Status)).
		Dur("duration", report.Duration()).
		Msg("Backup cycle finished")

	if msg, ok := r.summary(report); ok {
		r.deps.Notifier.Notify(ctx, msg)
	}
}

// summary builds the notification for report, if one should be sent.
func (r *Runner) summary(report *Report) (notify.Message, bool) {
	msg := notify.Message{
		Fields: []notify.Field{
			{Name: "Cycle", Value: report.ID, Inline: true},
			{Name: "Trigger", Value: string(report.Trigger), Inline: true},
		},
	}

	switch report.Status {
	case StatusFailed:
		msg.Title = "Backup failed"
		msg.Severity = notify.SeverityError
		msg.Description = "The backup cycle did not produce a usable archive commit."
	case StatusDegraded:
		msg.Title = "Backup completed with warnings"
		msg.Severity = notify.SeverityWarning
		msg.Description = "The archive was committed, but some data could not be backed up."
	case StatusCancelled:
		msg.Title = "Backup cancelled"
		msg.Severity = notify.SeverityWarning
		msg.Description = "The backup cycle was interrupted: " + report.Error
	case StatusSucceeded:
		if !r.opts.NotifyOnSuccess {
			return msg, false
		}
		msg.Title = "Backup completed"
		msg.Severity = notify.SeveritySuccess
		msg.Description = "All backup steps succeeded."
	default:
		// Skipped cycles are already covered by the availability notification.
		return msg, false
	}

	if v := report.Vault; v != nil {
		value := fmt.Sprintf("%d files copied, %d skipped", v.FilesCopied, v.FilesSkipped)
		if !v.Success {
			value = "failed: " + v.ErrorMessage
		}
		msg.Fields = append(msg.Fields, notify.Field{Name: "Vault", Value: value})
		if len(v.Warnings) > 0 {
			msg.Fields = append(msg.Fields, notify.Field{Name: "Warnings", Value: firstLines(v.Warnings, 5)})
		}
	}
	if d := report.Database; d != nil && d.Enabled {
		msg.Fields = append(msg.Fields, notify.Field{Name: "Database", Value: okString(d.OK), Inline: true})
	}
	if g := report.Git; g != nil {
		value := string(g.Outcome)
		if g.Error != "" {
			value += ": " + g.Error
		}
		msg.Fields = append(msg.Fields, notify.Field{Name: "Git", Value: value})
	}
	return msg, true
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// firstLines joins up to n lines and notes how many were left out.
func firstLines(lines []string, n int) string {
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n... and " + strconv.Itoa(len(lines)-n) + " more"
}
