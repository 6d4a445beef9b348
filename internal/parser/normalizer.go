// Package parser turns free-form chat messages into structured trade
// signals: text normalization, action detection, price extraction, and
// symbol resolution.
package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Superscript/subscript code points turn into plain digits under NFKC
	// and would corrupt price extraction, so they go first.
	superscriptRe = regexp.MustCompile(`[\x{2070}-\x{209F}]`)
	// Horizontal whitespace runs collapse to one space; newlines survive
	// because the price extractors split on them.
	hSpaceRe     = regexp.MustCompile(`[^\S\r\n]+`)
	decorationRe = regexp.MustCompile(`[\x{2611}\x{274C}\x{FE0F}]`)
	// Everything outside word characters, whitespace, common punctuation,
	// and the Arabic/Persian block U+0600-U+06FF is dropped. Persian
	// letters must survive for keyword and alias matching.
	disallowedRe = regexp.MustCompile(`[^\w\s.,:;!?(){}\[\]/+\-=@#%&*'"<>\x{0600}-\x{06FF}]`)
)

// Normalize cleans a raw chat message for parsing. It is pure and
// idempotent: Normalize(Normalize(s)) == Normalize(s). Whitespace collapses
// after the deletions so removed symbols cannot leave double spaces behind.
func Normalize(raw string) string {
	s := superscriptRe.ReplaceAllString(raw, "")
	s = norm.NFKC.String(s)
	s = decorationRe.ReplaceAllString(s, "")
	s = disallowedRe.ReplaceAllString(s, "")
	s = hSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
