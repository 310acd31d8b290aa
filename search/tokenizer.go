// Package search implements filename tokenization and query relevance
// scoring (spec §4.F), shared by put (token generation for indexing) and
// search (query tokenization and scoring).
package search

import (
	"path/filepath"
	"strings"
)

// minTokenLen is the minimum retained token length.
const minTokenLen = 2

// minPrefixLen is the shortest generated prefix length.
const minPrefixLen = 3

// Tokenize implements spec §4.F's tokenization procedure: strip the final
// extension, lower-case, split on whitespace/_/-/., retain tokens of length
// >= 2, then expand each into all of its prefixes of length 3..len-1,
// merged into the result set. Pure and deterministic — same input always
// yields the same token set, by construction (no hidden state).
func Tokenize(filename string) []string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	lower := strings.ToLower(stem)

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '-', '.':
			return true
		default:
			return false
		}
	})

	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}

	for _, tok := range fields {
		if len(tok) < minTokenLen {
			continue
		}
		add(tok)
		for l := minPrefixLen; l < len(tok); l++ {
			add(tok[:l])
		}
	}
	return out
}

// TokenizeQuery applies the same procedure to a raw search query string,
// per spec §4.F ("same procedure" for Q and F).
func TokenizeQuery(query string) []string {
	return Tokenize(query)
}
