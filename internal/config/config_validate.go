// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package config

import (
	"fmt"
	"path/filepath"

	"github.com/tomtom215/stronghold/internal/validation"
)

// Validate checks struct-tag rules and then cross-field constraints.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateArchive(); err != nil {
		return err
	}

	return c.validateHealth()
}

// validateDatabase requires connection details only when the step is enabled.
func (c *Config) validateDatabase() error {
	if !c.Database.Enabled {
		return nil
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required when database.enabled=true")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required when database.enabled=true")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required when database.enabled=true")
	}
	return nil
}

// validateArchive rejects layouts where the vault mirror and the dump overlap,
// or where the vault source is inside the archive it mirrors into.
func (c *Config) validateArchive() error {
	if c.Archive.VaultSubdir == c.Archive.DatabaseSubdir {
		return fmt.Errorf("archive.vault_subdir and archive.database_subdir must differ (both %q)", c.Archive.VaultSubdir)
	}
	if c.Vault.SourceDir == "" {
		return nil
	}
	src, err := filepath.Abs(c.Vault.SourceDir)
	if err != nil {
		return fmt.Errorf("vault.source_dir: %w", err)
	}
	root, err := filepath.Abs(c.Archive.Root)
	if err != nil {
		return fmt.Errorf("archive.root: %w", err)
	}
	if rel, err := filepath.Rel(root, src); err == nil && filepath.IsLocal(rel) || src == root {
		return fmt.Errorf("vault.source_dir %q must not be inside archive.root %q", src, root)
	}
	return nil
}

// validateHealth requires a probe timeout no longer than the polling interval.
func (c *Config) validateHealth() error {
	if c.Health.URL == "" {
		return nil
	}
	if c.Health.Timeout > c.Health.Interval {
		return fmt.Errorf("health.timeout (%s) must not exceed health.interval (%s)", c.Health.Timeout, c.Health.Interval)
	}
	return nil
}
