// Stronghold - Resilient Backup Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stronghold

package vault

import (
	"strings"
	"unicode/utf8"
)

// Replacement is written in place of every disallowed character.
const Replacement = '_'

// forbidden lists printable ASCII characters that are still unsafe on common
// filesystems.
const forbidden = `<>:"|?*`

// Sanitize returns name with every character that is not printable ASCII, or
// that is one of < > : " | ? *, replaced by '_'. Each invalid UTF-8 byte
// counts as one character. The result has the same character count as name
// and Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		i += size
		if Allowed(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(Replacement)
	}
	return b.String()
}

// Allowed reports whether r survives sanitization unchanged.
func Allowed(r rune) bool {
	return r >= 0x20 && r <= 0x7E && !strings.ContainsRune(forbidden, r)
}

// CharCount returns the number of characters Sanitize sees in name.
func CharCount(name string) int {
	n := 0
	for i := 0; i < len(name); {
		_, size := utf8.DecodeRuneInString(name[i:])
		i += size
		n++
	}
	return n
}
