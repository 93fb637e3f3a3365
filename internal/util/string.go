// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

// Ellipsize keeps the first maxRunes characters and appends "..." when the
// string is longer. Counting runes instead of bytes keeps multi-byte UTF-8
// characters intact. The marker does not count against the limit, matching
// title derivation: 30 kept characters plus "...".
func Ellipsize(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
