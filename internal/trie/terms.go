// Package trie implements the character trie behind free-text code search.
//
// Text is split into normalized terms (see Terms). Every term and every
// suffix of it is indexed, so a search term matches anywhere inside an
// indexed word, and every extension of a search term matches as a prefix.
// Results are ranked by how much of each indexed text the query covers.
package trie

import (
	"strings"
	"unicode/utf8"
)

// MinTermLength is the shortest term that is indexed or searched.
const MinTermLength = 2

var foldedRunes = map[rune]rune{
	'à': 'a', 'á': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e',
	'ï': 'i', 'ì': 'i', 'í': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o',
	'ü': 'u',
}

func isTermRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == 'æ', r == 'ø', r == 'å', r == '_', r == '-':
		return true
	}
	return false
}

// Terms lowercases s, folds accented vowels and splits on every rune that
// is not a letter a-z, æ, ø, å, a digit, '_' or '-'. Terms shorter than
// MinTermLength are dropped and duplicates are removed, keeping first
// occurrence order. With suffixes set, every suffix of each word that is at
// least MinTermLength long is added as well.
func Terms(s string, suffixes bool) []string {
	var terms []string
	seen := make(map[string]struct{})

	add := func(term string) {
		if utf8.RuneCountInString(term) < MinTermLength {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		runes := []rune(word.String())
		word.Reset()

		add(string(runes))
		if suffixes {
			for i := 1; i <= len(runes)-MinTermLength; i++ {
				add(string(runes[i:]))
			}
		}
	}

	for _, r := range strings.ToLower(s) {
		if folded, ok := foldedRunes[r]; ok {
			r = folded
		}
		if isTermRune(r) {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return terms
}
