// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/stronghold/internal/cycle"
	"github.com/tomtom215/stronghold/internal/gitops"
	"github.com/tomtom215/stronghold/internal/history"
)

// writeConfig writes a YAML config into a temp dir and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stronghold.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "run-once": false, "check-health": false, "history": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootCmd_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "check-health")
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("expected a config load error, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantOut string
		wantErr error
	}{
		{name: "healthy", status: http.StatusOK, wantOut: "healthy"},
		{name: "unhealthy", status: http.StatusServiceUnavailable, wantOut: "unhealthy", wantErr: errUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			cfg := writeConfig(t, fmt.Sprintf("health:\n  url: %q\n  timeout: 2s\nlogging:\n  level: error\n", srv.URL))
			out, err := execute(t, "--config", cfg, "check-health")

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !strings.HasPrefix(out, tt.wantOut) {
				t.Errorf("output = %q, want prefix %q", out, tt.wantOut)
			}
		})
	}
}

func TestCheckHealth_Disabled(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: error\n")

	out, err := execute(t, "--config", cfg, "check-health")
	if err != nil {
		t.Fatalf("check-health: %v", err)
	}
	if !strings.Contains(out, "no health.url configured") {
		t.Errorf("output = %q", out)
	}
}

func seedHistory(t *testing.T, dir string, reports ...cycle.Report) {
	t.Helper()
	store, err := history.Open[cycle.Report](history.Config{Dir: dir})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	for _, r := range reports {
		if err := store.Put(context.Background(), r.ID, r.StartedAt, r); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close history: %v", err)
	}
}

func TestHistoryCmd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seedHistory(t, dir,
		cycle.Report{ID: "old00001", Trigger: cycle.TriggerSchedule, Status: cycle.StatusSucceeded, StartedAt: start, FinishedAt: start.Add(time.Minute)},
		cycle.Report{
			ID: "new00002", Trigger: cycle.TriggerManual, Status: cycle.StatusDegraded,
			StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour + time.Minute),
			Git: &gitops.Result{Outcome: gitops.OutcomeCommitted},
		},
	)
	cfg := writeConfig(t, fmt.Sprintf("history:\n  dir: %q\nlogging:\n  level: error\n", dir))

	out, err := execute(t, "--config", cfg, "history", "--limit", "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "new00002") || !strings.Contains(out, "committed") {
		t.Errorf("expected newest report in output:\n%s", out)
	}
	if strings.Contains(out, "old00001") {
		t.Errorf("--limit 1 should hide the older report:\n%s", out)
	}

	out, err = execute(t, "--config", cfg, "history", "--json")
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	if !strings.Contains(out, `"id": "new00002"`) || !strings.Contains(out, `"id": "old00001"`) {
		t.Errorf("expected both reports as JSON:\n%s", out)
	}
}

func TestHistoryCmd_Empty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	cfg := writeConfig(t, fmt.Sprintf("history:\n  dir: %q\nlogging:\n  level: error\n", dir))

	out, err := execute(t, "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "no cycles recorded") {
		t.Errorf("output = %q", out)
	}
}

func TestHistoryCmd_InvalidLimit(t *testing.T) {
	cfg := writeConfig(t, "logging:\n  level: error\n")

	if _, err := execute(t, "--config", cfg, "history", "--limit", "0"); err == nil {
		t.Error("expected an error for --limit 0")
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

func TestRunOnce_EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	source := filepath.Join(root, "vault")
	work := filepath.Join(root, "archive")
	remote := filepath.Join(root, "remote.git")
	historyDir := filepath.Join(root, "history")

	for _, f := range []string{"notes/today.md", "attachments/photo.png"} {
		path := filepath.Join(source, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("content of "+f), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	if err := os.MkdirAll(work, 0o750); err != nil {
		t.Fatal(err)
	}
	runGit(t, work, "init", "--quiet")
	runGit(t, work, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, work, "commit", "--quiet", "--allow-empty", "-m", "initial")
	runGit(t, root, "init", "--quiet", "--bare", remote)
	runGit(t, work, "remote", "add", "origin", remote)

	lockName := "stronghold-cli-" + uuid.New().String()[:8]
	cfg := writeConfig(t, fmt.Sprintf(`vault:
  source_dir: %q
archive:
  root: %q
history:
  dir: %q
schedule:
  cycle_lock_name: %q
server:
  enabled: false
logging:
  level: error
`, source, work, historyDir, lockName))

	out, err := execute(t, "--config", cfg, "run-once")
	if err != nil {
		t.Fatalf("run-once: %v\n%s", err, out)
	}
	if !strings.Contains(out, ": succeeded in ") {
		t.Errorf("expected a succeeded summary:\n%s", out)
	}
	if !strings.Contains(out, "files=2") {
		t.Errorf("expected two files copied:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(work, "vault", "notes", "today.md")); err != nil {
		t.Errorf("mirrored file missing: %v", err)
	}
	if log := runGit(t, root, "--git-dir", remote, "log", "--format=%s", "main"); !strings.Contains(log, "Automated backup - ") {
		t.Errorf("remote log = %q, want an automated backup commit", log)
	}

	out, err = execute(t, "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "succeeded") || !strings.Contains(out, "cli") {
		t.Errorf("history should list the run-once cycle:\n%s", out)
	}
}
