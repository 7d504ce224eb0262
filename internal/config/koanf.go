// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"stronghold.yaml",
	"stronghold.yml",
	"/etc/stronghold/config.yaml",
	"/etc/stronghold/config.yml",
}

// ConfigPathEnvVar overrides the config file search when set.
const ConfigPathEnvVar = "STRONGHOLD_CONFIG"

// defaultConfig returns a Config with every default applied. Defaults are
// loaded first and then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			SourceDir: "",
		},
		Archive: ArchiveConfig{
			Root:           "/data/archive",
			VaultSubdir:    "vault",
			DatabaseSubdir: "database",
			DumpFile:       "database.sql",
		},
		Git: GitConfig{
			Remote:         "origin",
			Branch:         "main",
			LockStaleAfter: 10 * time.Minute,
			Binary:         "git",
			CommandTimeout: 60 * time.Second,
			PushTimeout:    120 * time.Second,
			AuthorName:     "Stronghold Backup",
			AuthorEmail:    "stronghold@localhost.localdomain",
			UsernameEnv:    "GIT_USERNAME",
			TokenEnv:       "GIT_TOKEN",
		},
		Database: DatabaseConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			DumpBinary:    "pg_dump",
			DumpTimeout:   120 * time.Second,
			PreflightPing: true,
			SSLMode:       "prefer",
		},
		Health: HealthConfig{
			URL:              "",
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 3,
		},
		Notify: NotifyConfig{
			WebhookURL:    "",
			Footer:        "Stronghold Backup",
			RatePerSecond: 1,
			QueueSize:     64,
			Timeout:       10 * time.Second,
			OnSuccess:     false,
		},
		Schedule: ScheduleConfig{
			Interval:          time.Hour,
			RunOnStart:        true,
			CycleLockName:     "stronghold-cycle",
			CatchUpOnRecovery: true,
		},
		History: HistoryConfig{
			Dir:  "/data/history",
			Keep: 500,
		},
		Server: ServerConfig{
			Enabled:              true,
			Host:                 "127.0.0.1",
			Port:                 9750,
			TriggerRatePerMinute: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates it. An explicit path must exist; when path is
// empty the STRONGHOLD_CONFIG variable and DefaultConfigPaths are searched.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	configPath := path
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	} else {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processUnitFields(k); err != nil {
		return nil, fmt.Errorf("failed to process environment units: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// unitFields maps integer-valued environment keys to the duration key they set.
var unitFields = []struct {
	raw    string
	target string
	unit   time.Duration
}{
	{"health.interval_seconds", "health.interval", time.Second},
	{"health.timeout_seconds", "health.timeout", time.Second},
	{"git.lock_stale_minutes", "git.lock_stale_after", time.Minute},
}

// processUnitFields converts the integer env values of unitFields into durations.
func processUnitFields(k *koanf.Koanf) error {
	for _, f := range unitFields {
		if !k.Exists(f.raw) {
			continue
		}
		raw := strings.TrimSpace(k.String(f.raw))
		k.Delete(f.raw)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", f.raw, raw)
		}
		if err := k.Set(f.target, time.Duration(n*float64(f.unit))); err != nil {
			return fmt.Errorf("failed to set %s: %w", f.target, err)
		}
	}
	return nil
}

// envMappings is the complete list of environment variables Stronghold reads.
var envMappings = map[string]string{
	"vault_source_dir": "vault.source_dir",

	"archive_root":            "archive.root",
	"archive_vault_subdir":    "archive.vault_subdir",
	"archive_database_subdir": "archive.database_subdir",
	"archive_dump_file":       "archive.dump_file",

	"git_remote":             "git.remote",
	"git_branch":             "git.branch",
	"git_lock_stale_minutes": "git.lock_stale_minutes",
	"git_lock_stale_after":   "git.lock_stale_after",
	"git_binary":             "git.binary",
	"git_command_timeout":    "git.command_timeout",
	"git_push_timeout":       "git.push_timeout",
	"git_author_name":        "git.author_name",
	"git_author_email":       "git.author_email",
	"git_username_env":       "git.username_env",
	"git_token_env":          "git.token_env",

	"database_enabled":        "database.enabled",
	"database_host":           "database.host",
	"database_port":           "database.port",
	"database_user":           "database.user",
	"database_password":       "database.password",
	"database_name":           "database.name",
	"database_dump_binary":    "database.dump_binary",
	"database_dump_timeout":   "database.dump_timeout",
	"database_preflight_ping": "database.preflight_ping",
	"database_ssl_mode":       "database.ssl_mode",

	"health_url":                   "health.url",
	"health_api_key":               "health.api_key",
	"health_ping_interval_seconds": "health.interval_seconds",
	"health_timeout_seconds":       "health.timeout_seconds",
	"health_failure_threshold":     "health.failure_threshold",

	"notify_webhook_url":     "notify.webhook_url",
	"notify_footer":          "notify.footer",
	"notify_rate_per_second": "notify.rate_per_second",
	"notify_queue_size":      "notify.queue_size",
	"notify_timeout":         "notify.timeout",
	"notify_on_success":      "notify.on_success",

	"schedule_interval":             "schedule.interval",
	"schedule_run_on_start":         "schedule.run_on_start",
	"schedule_cycle_lock_name":      "schedule.cycle_lock_name",
	"schedule_catch_up_on_recovery": "schedule.catch_up_on_recovery",

	"history_dir":  "history.dir",
	"history_keep": "history.keep",

	"server_enabled":                 "server.enabled",
	"server_host":                    "server.host",
	"server_port":                    "server.port",
	"server_trigger_rate_per_minute": "server.trigger_rate_per_minute",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
//
//   - ARCHIVE_ROOT -> archive.root
//   - HEALTH_PING_INTERVAL_SECONDS -> health.interval_seconds (converted later)
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
