package parser

import "strings"

// DefaultSymbol is the last-resort instrument when a message names nothing
// the broker knows. The signal domain this parser serves is overwhelmingly
// gold.
const DefaultSymbol = "XAUUSD"

// symbolAliases maps keyword families to canonical instrument names. A
// candidate word containing any keyword resolves to the family's canonical,
// which is then matched against the broker's own spellings. Order matters:
// gold is checked first.
var symbolAliases = []struct {
	keywords  []string
	canonical string
}{
	{[]string{"طلا", "انس", "اونس", "گلد", "GOLD", "GLD", "XAUUSD", "#XAUUSD"}, "XAUUSD"},
	{[]string{"US30", "داوجونز"}, "DJIUSD"},
	{[]string{"یورو", "EURUSD"}, "EURUSD"},
	{[]string{"NASDAQ"}, "NDAQ"},
	{[]string{"OIL"}, "OIL"},
}

// SymbolResolver maps message words onto the broker's exact symbol
// spellings. It holds the symbol set enumerated at startup; user mappings
// override the spelling choice when they name a live symbol.
type SymbolResolver struct {
	symbols  []string
	mappings map[string]string
	strict   bool
}

// NewSymbolResolver builds a resolver over the broker's symbol set. With
// strict on, Resolve returns "" instead of the gold default when nothing in
// the text matches.
func NewSymbolResolver(symbols []string, mappings map[string]string, strict bool) *SymbolResolver {
	up := make(map[string]string, len(mappings))
	for k, v := range mappings {
		up[strings.ToUpper(k)] = v
	}
	return &SymbolResolver{symbols: symbols, mappings: up, strict: strict}
}

// Resolve returns the broker's spelling for the instrument the text names.
// Direct symbol mentions win over alias keywords; with nothing matched the
// gold default applies unless the resolver is strict.
func (r *SymbolResolver) Resolve(text string) string {
	words := strings.Fields(text)

	for _, w := range words {
		cand := canonicalizeWord(w)
		if cand == "" {
			continue
		}
		if r.knows(cand) {
			if sym := r.pick(cand); sym != "" {
				return sym
			}
		}
	}

	for _, w := range words {
		cand := canonicalizeWord(w)
		if cand == "" {
			continue
		}
		for _, alias := range symbolAliases {
			if !containsAny(cand, alias.keywords) {
				continue
			}
			if sym := r.pick(alias.canonical); sym != "" {
				return sym
			}
		}
	}

	if r.strict {
		return ""
	}
	if sym := r.pick(DefaultSymbol); sym != "" {
		return sym
	}
	return DefaultSymbol
}

// knows reports whether cand is exactly one of the broker's symbols,
// compared case-insensitively.
func (r *SymbolResolver) knows(cand string) bool {
	for _, s := range r.symbols {
		if strings.ToUpper(s) == cand {
			return true
		}
	}
	return false
}

// pick selects the broker spelling for word: among symbols containing it as
// a substring, a user mapping naming a live symbol wins, then a spelling
// free of the '!'/'#' variant markers, then the first match.
func (r *SymbolResolver) pick(word string) string {
	var matches []string
	for _, s := range r.symbols {
		if strings.Contains(strings.ToUpper(s), word) {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		return ""
	}
	if mapped, ok := r.mappings[word]; ok {
		for _, s := range r.symbols {
			if s == mapped {
				return s
			}
		}
	}
	for _, m := range matches {
		if !strings.ContainsAny(m, "!#") {
			return m
		}
	}
	return matches[0]
}

func canonicalizeWord(w string) string {
	w = strings.ReplaceAll(w, "/", "")
	w = strings.ReplaceAll(w, "-", "")
	return strings.ToUpper(w)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}
