// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package validation

import (
	"strings"
	"testing"
	"time"
)

type gitSection struct {
	Remote   string `koanf:"remote" validate:"required,gitref"`
	Branch   string `koanf:"branch" validate:"required,gitref"`
	LockName string `koanf:"lock_name" validate:"lockname"`
}

type testConfig struct {
	Git      gitSection    `koanf:"git"`
	Interval time.Duration `koanf:"interval" validate:"min=1s"`
	Limit    int           `validate:"min=1,max=500"`
}

func validTestConfig() testConfig {
	return testConfig{
		Git:      gitSection{Remote: "origin", Branch: "main", LockName: "stronghold-cycle"},
		Interval: time.Minute,
		Limit:    50,
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig()
	if err := ValidateStruct(&cfg); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateStruct_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*testConfig)
		wantField string
		wantTag   string
	}{
		{"missing remote", func(c *testConfig) { c.Git.Remote = "" }, "git.remote", "required"},
		{"branch with space", func(c *testConfig) { c.Git.Branch = "my branch" }, "git.branch", "gitref"},
		{"branch with dots", func(c *testConfig) { c.Git.Branch = "a..b" }, "git.branch", "gitref"},
		{"branch ends in .lock", func(c *testConfig) { c.Git.Branch = "main.lock" }, "git.branch", "gitref"},
		{"uppercase lock name", func(c *testConfig) { c.Git.LockName = "Cycle" }, "git.lock_name", "lockname"},
		{"interval too short", func(c *testConfig) { c.Interval = time.Millisecond }, "interval", "min"},
		{"limit too large", func(c *testConfig) { c.Limit = 501 }, "Limit", "max"},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validTestConfig()
			tt.mutate(&cfg)

			err := ValidateStruct(&cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("field = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("tag = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestRequestValidationError_ToAPIError(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig()
	cfg.Limit = 0
	cfg.Git.Remote = ""

	err := ValidateStruct(&cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "git.remote is required") {
		t.Errorf("message missing remote error: %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Message, "Limit must be at least 1") {
		t.Errorf("message missing limit error: %q", apiErr.Message)
	}
	fields, ok := apiErr.Details["fields"].(map[string]string)
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field entries, got %v", apiErr.Details["fields"])
	}
}
