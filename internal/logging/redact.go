// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package logging

import (
	"net/url"
	"strings"
)

// RedactSecret masks a secret, showing only the first and last 4 characters.
// Secrets of 12 characters or fewer are fully masked.
//
//	RedactSecret("ghp_abcdefghijklmnop") -> "ghp_...mnop"
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 12 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// RedactURL keeps the scheme and host of a URL and masks everything that could
// carry a credential: userinfo, path, query and fragment.
//
//	RedactURL("https://discord.com/api/webhooks/123/tok") -> "https://discord.com/***"
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	redacted := u.Scheme + "://" + u.Host
	if strings.Trim(u.Path, "/") != "" || u.RawQuery != "" || u.Fragment != "" {
		redacted += "/***"
	}
	return redacted
}
