package slug

import (
	"regexp"
	"strings"
)

var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s_-]`)
	separators = regexp.MustCompile(`[\s_-]+`)
)

// Generate derives the canonical lookup key for a firm name.
//
// The name is lowercased, every character outside [a-z0-9], whitespace,
// underscore and hyphen is dropped, separator runs become a single hyphen and
// leading/trailing hyphens are trimmed. Names that differ only in case,
// punctuation or separators yield the same slug.
//
// Examples:
//   - "Acme Ventures" → "acme-ventures"
//   - "Acme   Ventures!!" → "acme-ventures"
//   - "a16z_Crypto -- Fund" → "a16z-crypto-fund"
func Generate(name string) string {
	s := strings.ToLower(name)
	s = disallowed.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
