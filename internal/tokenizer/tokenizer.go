// Package tokenizer splits line text into words for relevance scoring.
// A word is a maximal run of ASCII letters and digits, returned lower-cased;
// every other byte separates words and is otherwise ignored.
package tokenizer

import "strings"

// NextWord returns the next word at or after start and the offset just past
// it. When no alphanumeric byte remains the word is empty and next equals
// len(text).
func NextWord(text string, start int) (word string, next int) {
	if start < 0 {
		start = 0
	}
	for start < len(text) && !isAlnum(text[start]) {
		start++
	}
	end := start
	for end < len(text) && isAlnum(text[end]) {
		end++
	}
	if end == start {
		return "", len(text)
	}
	return strings.ToLower(text[start:end]), end
}

// Words enumerates every word of text, left to right.
func Words(text string) []string {
	var words []string
	for pos := 0; pos < len(text); {
		var word string
		word, pos = NextWord(text, pos)
		if word == "" {
			break
		}
		words = append(words, word)
	}
	return words
}

// IsPrefix reports whether term matches the leading bytes of word. The
// empty term is a prefix of every word. Both arguments are expected to be
// lower-case already.
func IsPrefix(word, term string) bool {
	if len(word) < len(term) {
		return false
	}
	return word[:len(term)] == term
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
