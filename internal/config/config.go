// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all Stronghold configuration.
type Config struct {
	Vault    VaultConfig    `koanf:"vault"`
	Archive  ArchiveConfig  `koanf:"archive"`
	Git      GitConfig      `koanf:"git"`
	Database DatabaseConfig `koanf:"database"`
	Health   HealthConfig   `koanf:"health"`
	Notify   NotifyConfig   `koanf:"notify"`
	Schedule ScheduleConfig `koanf:"schedule"`
	History  HistoryConfig  `koanf:"history"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// VaultConfig locates the live vault data. An empty SourceDir is accepted at
// load time; the vault step reports it as a preflight failure each cycle.
type VaultConfig struct {
	SourceDir string `koanf:"source_dir"`
}

// ArchiveConfig describes the git-managed archive layout.
type ArchiveConfig struct {
	Root           string `koanf:"root" validate:"required"`
	VaultSubdir    string `koanf:"vault_subdir" validate:"required,excludes=/"`
	DatabaseSubdir string `koanf:"database_subdir" validate:"required,excludes=/"`
	DumpFile       string `koanf:"dump_file" validate:"required,excludes=/"`
}

// VaultDir returns the mirror destination inside the archive.
func (a ArchiveConfig) VaultDir() string {
	return filepath.Join(a.Root, a.VaultSubdir)
}

// DumpPath returns the database dump location inside the archive.
func (a ArchiveConfig) DumpPath() string {
	return filepath.Join(a.Root, a.DatabaseSubdir, a.DumpFile)
}

// GitConfig holds version control settings for the archive repository.
type GitConfig struct {
	Remote         string        `koanf:"remote" validate:"required,gitref"`
	Branch         string        `koanf:"branch" validate:"required,gitref"`
	LockStaleAfter time.Duration `koanf:"lock_stale_after" validate:"gt=0"`
	Binary         string        `koanf:"binary" validate:"required"`
	CommandTimeout time.Duration `koanf:"command_timeout" validate:"min=1s"`
	PushTimeout    time.Duration `koanf:"push_timeout" validate:"min=1s"`
	AuthorName     string        `koanf:"author_name" validate:"required"`
	AuthorEmail    string        `koanf:"author_email" validate:"required,email"`

	// UsernameEnv and TokenEnv name the environment variables that hold push
	// credentials. The values themselves are never stored in Config.
	UsernameEnv string `koanf:"username_env" validate:"required"`
	TokenEnv    string `koanf:"token_env" validate:"required"`
}

// DatabaseConfig holds PostgreSQL connection and dump settings.
type DatabaseConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port" validate:"min=1,max=65535"`
	User          string        `koanf:"user"`
	Password      string        `koanf:"password"`
	Name          string        `koanf:"name"`
	DumpBinary    string        `koanf:"dump_binary" validate:"required"`
	DumpTimeout   time.Duration `koanf:"dump_timeout" validate:"min=1s"`
	PreflightPing bool          `koanf:"preflight_ping"`
	SSLMode       string        `koanf:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// HealthConfig controls upstream availability monitoring. An empty URL
// disables probing and the server is always treated as healthy.
type HealthConfig struct {
	URL              string        `koanf:"url" validate:"omitempty,http_url"`
	APIKey           string        `koanf:"api_key"`
	Interval         time.Duration `koanf:"interval" validate:"min=1s"`
	Timeout          time.Duration `koanf:"timeout" validate:"min=100ms"`
	FailureThreshold int           `koanf:"failure_threshold" validate:"min=1"`
}

// NotifyConfig controls webhook notifications. An empty WebhookURL disables
// delivery; notifications are then only logged.
type NotifyConfig struct {
	WebhookURL    string        `koanf:"webhook_url" validate:"omitempty,http_url"`
	Footer        string        `koanf:"footer"`
	RatePerSecond float64       `koanf:"rate_per_second" validate:"gt=0"`
	QueueSize     int           `koanf:"queue_size" validate:"min=1"`
	Timeout       time.Duration `koanf:"timeout" validate:"min=100ms"`
	OnSuccess     bool          `koanf:"on_success"`
}

// ScheduleConfig controls when backup cycles run.
type ScheduleConfig struct {
	Interval          time.Duration `koanf:"interval" validate:"min=1s"`
	RunOnStart        bool          `koanf:"run_on_start"`
	CycleLockName     string        `koanf:"cycle_lock_name" validate:"required,lockname"`
	CatchUpOnRecovery bool          `koanf:"catch_up_on_recovery"`
}

// HistoryConfig controls the on-disk cycle history.
type HistoryConfig struct {
	Dir  string `koanf:"dir" validate:"required"`
	Keep int    `koanf:"keep" validate:"min=1"`
}

// ServerConfig controls the operator HTTP API.
type ServerConfig struct {
	Enabled              bool   `koanf:"enabled"`
	Host                 string `koanf:"host"`
	Port                 int    `koanf:"port" validate:"min=1,max=65535"`
	TriggerRatePerMinute int    `koanf:"trigger_rate_per_minute" validate:"min=1"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
