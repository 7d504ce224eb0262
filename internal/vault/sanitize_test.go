// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package vault

import (
	"testing"
	"testing/quick"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain ascii", "notes-2026.md", "notes-2026.md"},
		{"spaces kept", "my file.txt", "my file.txt"},
		{"forbidden characters", `a<b>c:d"e|f?g*h`, "a_b_c_d_e_f_g_h"},
		{"accented letter", "café.md", "caf_.md"},
		{"cjk", "日記.txt", "__.txt"},
		{"emoji", "idea💡.md", "idea_.md"},
		{"control characters", "tab\there\n", "tab_here_"},
		{"delete character", "x\x7fy", "x_y"},
		{"invalid utf-8 bytes", "bad\xff\xfename", "bad__name"},
		{"tilde and backslash kept", `~\`, `~\`},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize_Properties(t *testing.T) {
	t.Parallel()

	lengthPreserved := func(s string) bool {
		return CharCount(Sanitize(s)) == CharCount(s) && len(Sanitize(s)) == CharCount(s)
	}
	idempotent := func(s string) bool {
		once := Sanitize(s)
		return Sanitize(once) == once
	}
	alphabet := func(s string) bool {
		for _, r := range Sanitize(s) {
			if !Allowed(r) && r != Replacement {
				return false
			}
		}
		return true
	}
	bytesIn := func(b []byte) bool {
		s := string(b)
		return CharCount(Sanitize(s)) == CharCount(s) && Sanitize(Sanitize(s)) == Sanitize(s)
	}

	for name, prop := range map[string]any{
		"length preserved": lengthPreserved,
		"idempotent":       idempotent,
		"safe alphabet":    alphabet,
		"arbitrary bytes":  bytesIn,
	} {
		if err := quick.Check(prop, &quick.Config{MaxCount: 2000}); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	for r := rune(0); r < 0x80; r++ {
		want := r >= 0x20 && r <= 0x7E
		switch r {
		case '<', '>', ':', '"', '|', '?', '*':
			want = false
		}
		if got := Allowed(r); got != want {
			t.Errorf("Allowed(%q) = %v, want %v", r, got, want)
		}
	}
	if Allowed('é') {
		t.Error("non-ASCII rune must not be allowed")
	}
}
