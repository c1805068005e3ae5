package main

import (
	"net/url"
	"strings"
)

// The MindTouch export stores filenames on disk with two stacked encoding
// layers, not a single URL-encode pass:
//
//  1. spaces become '+', non-ASCII bytes become %XX
//     ("My File.oft" -> "My+File.oft", "A B.oft" -> "A%C2%A0B.oft")
//  2. the result is percent-encoded again with '+' no longer safe
//     ("My+File.oft" -> "My%2BFile.oft", "A%C2%A0B.oft" -> "A%25C2%25A0B.oft")
//
// Markup may declare either the display name or a partially/fully encoded
// spelling, so resolution works off an ordered candidate list rather than a
// single decode.

// FilenameCandidates returns plausible on-disk spellings for a declared
// filename, most likely first: the literal string, the outer escape layer
// reversed, both layers reversed, and the display name re-encoded through
// both layers. Higher-fidelity candidates come first so that files
// differing only by encoding artifacts are not matched loosely.
func FilenameCandidates(name string) []string {
	once := decodeEscapesOnce(name)
	full := DecodeExportName(name)
	encoded := EncodeExportName(full)

	candidates := []string{name}
	for _, c := range []string{once, full, encoded} {
		if c == "" {
			continue
		}
		seen := false
		for _, existing := range candidates {
			if existing == c {
				seen = true
				break
			}
		}
		if !seen {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// DecodeExportName reverses both encoding layers, yielding the display
// name. Decoding is idempotent: an already-clean name passes through
// unchanged.
func DecodeExportName(name string) string {
	once := decodeEscapesOnce(name)
	spaced := strings.ReplaceAll(once, "+", " ")
	return decodeEscapesOnce(spaced)
}

// decodeEscapesOnce reverses one percent-escape layer. Invalid escapes
// (a literal '%' in a clean name) leave the input untouched.
func decodeEscapesOnce(name string) string {
	decoded, err := url.PathUnescape(name)
	if err != nil {
		return name
	}
	return decoded
}

// EncodeExportName applies both encoding layers to a display name,
// producing the spelling the export writes to disk.
func EncodeExportName(name string) string {
	first := escapeExcept(strings.ReplaceAll(name, " ", "+"), "().-_+")
	return escapeExcept(first, "().-_")
}

const upperhex = "0123456789ABCDEF"

// escapeExcept percent-encodes every byte that is not alphanumeric, not in
// the always-safe set "_.-~", and not in the given safe set. The export's
// safe sets ("().-_+" then "().-_") don't match any stdlib escape variant.
func escapeExcept(s, safe string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isFilenameSafe(c, safe) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

func isFilenameSafe(c byte, safe string) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return true
	}
	switch c {
	case '_', '.', '-', '~':
		return true
	}
	return strings.IndexByte(safe, c) >= 0
}
