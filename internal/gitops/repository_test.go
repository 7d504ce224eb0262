// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package gitops

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/tomtom215/stronghold/internal/notify"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	full := append([]string{
		"-c", "user.name=Test",
		"-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false",
		"-c", "init.defaultBranch=main",
	}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// newArchive creates a work tree with one commit, pushed to a bare remote.
func newArchive(t *testing.T, withRemote bool) (work, remote string) {
	t.Helper()
	requireGit(t)

	root := t.TempDir()
	work = filepath.Join(root, "archive")
	if err := os.MkdirAll(work, 0o750); err != nil {
		t.Fatal(err)
	}

	runGit(t, work, "init", "--quiet")
	runGit(t, work, "symbolic-ref", "HEAD", "refs/heads/main")
	writeFile(t, filepath.Join(work, "README.md"), "archive\n")
	runGit(t, work, "add", "--all")
	runGit(t, work, "commit", "--quiet", "-m", "initial")

	if withRemote {
		remote = filepath.Join(root, "remote.git")
		runGit(t, root, "init", "--quiet", "--bare", remote)
		runGit(t, work, "remote", "add", "origin", remote)
		runGit(t, work, "push", "--quiet", "origin", "HEAD:refs/heads/main")
		runGit(t, work, "fetch", "--quiet", "origin")
	}
	return work, remote
}

func newTestRepo(t *testing.T, dir string) (*Repository, *notify.Recorder, *testclock.Clock) {
	t.Helper()
	rec := &notify.Recorder{}
	clk := testclock.NewClock(testNow)
	r := NewRepository(Config{
		Dir:            dir,
		LockStaleAfter: 10 * time.Minute,
		CommandTimeout: 30 * time.Second,
		PushTimeout:    30 * time.Second,
		AuthorName:     "Stronghold Backup",
		AuthorEmail:    "stronghold@localhost.localdomain",
	}, rec, clk)
	r.getenv = func(string) string { return "" }
	return r, rec, clk
}

func commitCount(t *testing.T, dir string) string {
	t.Helper()
	return runGit(t, dir, "rev-list", "--count", "HEAD")
}

func TestSync_CommitsAndPushes(t *testing.T) {
	t.Parallel()

	work, remote := newArchive(t, true)
	repo, _, _ := newTestRepo(t, work)

	writeFile(t, filepath.Join(work, "vault", "notes", "a.md"), "alpha")
	writeFile(t, filepath.Join(work, "database", "database.sql"), "-- dump")

	res, err := repo.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Outcome != OutcomeCommitted {
		t.Fatalf("Outcome = %s (%s), want committed", res.Outcome, res.Error)
	}

	wantMsg := "Automated backup - 2026-03-14 09:26:53 UTC"
	if res.CommitMessage != wantMsg {
		t.Errorf("CommitMessage = %q, want %q", res.CommitMessage, wantMsg)
	}
	if got := runGit(t, work, "log", "-1", "--format=%s"); got != wantMsg {
		t.Errorf("HEAD subject = %q, want %q", got, wantMsg)
	}
	if got := runGit(t, work, "log", "-1", "--format=%an <%ae>"); got != "Stronghold Backup <stronghold@localhost.localdomain>" {
		t.Errorf("author = %q", got)
	}

	local := runGit(t, work, "rev-parse", "HEAD")
	pushed := runGit(t, remote, "rev-parse", "refs/heads/main")
	if local != pushed {
		t.Errorf("remote main = %s, local HEAD = %s", pushed, local)
	}
	if got := runGit(t, work, "status", "--porcelain"); got != "" {
		t.Errorf("work tree not clean after sync:\n%s", got)
	}
}

func TestSync_NoChanges(t *testing.T) {
	t.Parallel()

	work, _ := newArchive(t, true)
	repo, rec, _ := newTestRepo(t, work)

	before := commitCount(t, work)
	ok, err := repo.CommitAndPush(context.Background())
	if err != nil || !ok {
		t.Fatalf("CommitAndPush() = %v, %v; want true, nil", ok, err)
	}
	if after := commitCount(t, work); after != before {
		t.Errorf("commit count changed from %s to %s", before, after)
	}
	if n := len(rec.Messages()); n != 0 {
		t.Errorf("expected no notifications, got %d", n)
	}
}

func TestSync_NoChangesWithoutRemote(t *testing.T) {
	t.Parallel()

	work, _ := newArchive(t, false)
	repo, _, _ := newTestRepo(t, work)

	res, err := repo.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Outcome != OutcomeNoChanges {
		t.Errorf("Outcome = %s (%s), want no_changes", res.Outcome, res.Error)
	}
}

func TestSync_IndexLock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		age           time.Duration
		wantOutcome   Outcome
		wantLockGone  bool
		wantSeverity  notify.Severity
		wantNewCommit bool
	}{
		{"well past threshold", 45 * time.Minute, OutcomeCommitted, true, notify.SeverityWarning, true},
		{"exactly at threshold", 10 * time.Minute, OutcomeCommitted, true, notify.SeverityWarning, true},
		{"just under threshold", 10*time.Minute - time.Second, OutcomeLockContended, false, notify.SeverityError, false},
		{"fresh", 30 * time.Second, OutcomeLockContended, false, notify.SeverityError, false},
		{"modified in the future", -5 * time.Minute, OutcomeLockContended, false, notify.SeverityError, false},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			work, _ := newArchive(t, true)
			repo, rec, clk := newTestRepo(t, work)

			writeFile(t, filepath.Join(work, "vault", "b.md"), "bravo")
			lock := filepath.Join(work, ".git", "index.lock")
			writeFile(t, lock, "")
			mtime := clk.Now().Add(-tt.age)
			if err := os.Chtimes(lock, mtime, mtime); err != nil {
				t.Fatal(err)
			}

			before := commitCount(t, work)
			res, err := repo.Sync(context.Background())
			if err != nil {
				t.Fatalf("Sync() error = %v", err)
			}
			if res.Outcome != tt.wantOutcome {
				t.Fatalf("Outcome = %s (%s), want %s", res.Outcome, res.Error, tt.wantOutcome)
			}

			_, statErr := os.Stat(lock)
			if gone := os.IsNotExist(statErr); gone != tt.wantLockGone {
				t.Errorf("lock removed = %v, want %v", gone, tt.wantLockGone)
			}
			if !tt.wantLockGone {
				info, err := os.Stat(lock)
				if err != nil || !info.ModTime().Equal(mtime) {
					t.Error("contended lock must be left untouched")
				}
			}

			if n := len(rec.BySeverity(tt.wantSeverity)); n != 1 {
				t.Errorf("%s notifications = %d, want 1", tt.wantSeverity, n)
			}

			newCommit := commitCount(t, work) != before
			if newCommit != tt.wantNewCommit {
				t.Errorf("new commit = %v, want %v", newCommit, tt.wantNewCommit)
			}
		})
	}
}

func TestCommitAndPush_LockContendedIsFalse(t *testing.T) {
	t.Parallel()

	work, _ := newArchive(t, true)
	repo, _, clk := newTestRepo(t, work)

	lock := filepath.Join(work, ".git", "index.lock")
	writeFile(t, lock, "")
	now := clk.Now()
	if err := os.Chtimes(lock, now, now); err != nil {
		t.Fatal(err)
	}

	ok, err := repo.CommitAndPush(context.Background())
	if err != nil {
		t.Fatalf("CommitAndPush() error = %v", err)
	}
	if ok {
		t.Error("CommitAndPush() = true with a fresh lock")
	}
}

func TestSync_NotARepository(t *testing.T) {
	t.Parallel()
	requireGit(t)

	for name, dir := range map[string]string{
		"plain directory": t.TempDir(),
		"missing":         filepath.Join(t.TempDir(), "nope"),
	} {
		t.Run(name, func(t *testing.T) {
			repo, _, _ := newTestRepo(t, dir)
			res, err := repo.Sync(context.Background())
			if err != nil {
				t.Fatalf("Sync() error = %v", err)
			}
			if res.Outcome != OutcomeFailed {
				t.Errorf("Outcome = %s, want failed", res.Outcome)
			}
			if !strings.Contains(res.Error, ErrNotRepository.Error()) {
				t.Errorf("Error = %q, want it to mention %q", res.Error, ErrNotRepository)
			}
		})
	}
}

func TestSync_MissingRemote(t *testing.T) {
	t.Parallel()

	work, _ := newArchive(t, false)
	repo, _, _ := newTestRepo(t, work)
	writeFile(t, filepath.Join(work, "vault", "c.md"), "charlie")

	res, err := repo.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %s, want failed", res.Outcome)
	}
	if !strings.Contains(res.Error, ErrRemoteNotFound.Error()) {
		t.Errorf("Error = %q, want remote not found", res.Error)
	}
	if res.CommitMessage == "" {
		t.Error("the local commit should still be reported")
	}
}

func TestSync_PushesPendingCommits(t *testing.T) {
	t.Parallel()

	work, remote := newArchive(t, true)
	repo, _, _ := newTestRepo(t, work)

	// A commit that an earlier, failed push left behind.
	writeFile(t, filepath.Join(work, "vault", "d.md"), "delta")
	runGit(t, work, "add", "--all")
	runGit(t, work, "commit", "--quiet", "-m", "unpushed")

	res, err := repo.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Outcome != OutcomeNoChanges {
		t.Fatalf("Outcome = %s (%s), want no_changes", res.Outcome, res.Error)
	}
	if local, pushed := runGit(t, work, "rev-parse", "HEAD"), runGit(t, remote, "rev-parse", "refs/heads/main"); local != pushed {
		t.Errorf("pending commit not pushed: remote %s, local %s", pushed, local)
	}
}

func TestSync_Cancelled(t *testing.T) {
	t.Parallel()

	work, _ := newArchive(t, true)
	repo, _, _ := newTestRepo(t, work)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Sync(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sync() error = %v, want context.Canceled", err)
	}
	ok, err := repo.CommitAndPush(ctx)
	if ok || !errors.Is(err, context.Canceled) {
		t.Errorf("CommitAndPush() = %v, %v; want false, context.Canceled", ok, err)
	}
}

func TestCredentialEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		env   map[string]string
		want  bool
		basic string
	}{
		{"both set", map[string]string{"GIT_USERNAME": "bot", "GIT_TOKEN": "ghp_abc"}, true, "bot:ghp_abc"},
		{"token missing", map[string]string{"GIT_USERNAME": "bot"}, false, ""},
		{"username missing", map[string]string{"GIT_TOKEN": "ghp_abc"}, false, ""},
		{"none", map[string]string{}, false, ""},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRepository(Config{Dir: t.TempDir()}, nil, nil)
			r.getenv = func(k string) string { return tt.env[k] }

			env := r.credentialEnv()
			if (env != nil) != tt.want {
				t.Fatalf("credentialEnv() = %v, want credentials = %v", env, tt.want)
			}
			if !tt.want {
				return
			}

			want := []string{
				"GIT_CONFIG_COUNT=1",
				"GIT_CONFIG_KEY_0=http.extraHeader",
				"GIT_CONFIG_VALUE_0=Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(tt.basic)),
			}
			for i := range want {
				if env[i] != want[i] {
					t.Errorf("env[%d] = %q, want %q", i, env[i], want[i])
				}
			}
		})
	}
}

func TestCredentialEnv_CustomNames(t *testing.T) {
	t.Parallel()

	r := NewRepository(Config{Dir: t.TempDir(), UsernameEnv: "ARCHIVE_USER", TokenEnv: "ARCHIVE_PAT"}, nil, nil)
	r.getenv = func(k string) string {
		return map[string]string{"ARCHIVE_USER": "u", "ARCHIVE_PAT": "p"}[k]
	}
	if r.credentialEnv() == nil {
		t.Error("custom variable names were not honored")
	}
}

func TestCommitMessage(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*60*60)
	got := CommitMessage(time.Date(2026, 1, 2, 22, 4, 5, 0, est))
	if want := "Automated backup - 2026-01-03 03:04:05 UTC"; got != want {
		t.Errorf("CommitMessage() = %q, want %q", got, want)
	}
}

func TestCommandError(t *testing.T) {
	t.Parallel()

	err := &CommandError{Args: []string{"push", "origin"}, ExitCode: 128, Stderr: "fatal: unable to access"}
	if got := err.Error(); got != "git push origin exited with status 128: fatal: unable to access" {
		t.Errorf("Error() = %q", got)
	}
	if exitCode(err) != 128 {
		t.Error("exitCode should unwrap CommandError")
	}
	if exitCode(errors.New("other")) != -1 {
		t.Error("exitCode of a foreign error should be -1")
	}
}
