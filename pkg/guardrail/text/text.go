// Package text holds the text measurements and normalization shared by rule loading
// and evaluation.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize lower-cases s, turns punctuation and symbols into word breaks, drops
// apostrophes, and collapses whitespace runs into single spaces. Keyword phrases
// and inspected text go through the same function so that spacing, casing and
// separator tricks do not change the outcome.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := true
	for _, r := range s {
		switch {
		case isApostrophe(r):
			// "let's" and "lets" normalize alike
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		default:
			b.WriteRune(unicode.ToLower(r))
			space = false
		}
	}

	return strings.TrimRight(b.String(), " ")
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’' || r == 'ʼ'
}

// ContainsPhrase reports whether the normalized text contains the normalized phrase
// on word boundaries. A run of whole words that spells the phrase once spaces are
// removed also matches, so "ig nore previous instructions" and
// "ignorepreviousinstructions" both contain "ignore previous instructions".
func ContainsPhrase(normalizedText, normalizedPhrase string) bool {
	if normalizedPhrase == "" {
		return false
	}
	if strings.Contains(" "+normalizedText+" ", " "+normalizedPhrase+" ") {
		return true
	}
	return containsFused(strings.Fields(normalizedText), strings.ReplaceAll(normalizedPhrase, " ", ""))
}

// containsFused reports whether some run of consecutive words concatenates to fused.
func containsFused(words []string, fused string) bool {
	for i := range words {
		rest := fused
		for _, w := range words[i:] {
			if !strings.HasPrefix(rest, w) {
				break
			}
			rest = rest[len(w):]
			if rest == "" {
				return true
			}
		}
	}
	return false
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// CountCharacters counts runes, not bytes.
func CountCharacters(s string) int {
	return utf8.RuneCountInString(s)
}

// CountSentences counts runs of sentence-ending punctuation that close a sentence.
// A terminator followed by a letter or digit (as in "3.14") does not end a sentence.
// Trailing text after the last terminator counts as one more sentence.
func CountSentences(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}

	runes := []rune(s)
	count := 0
	tail := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isTerminator(runes[j+1]) {
			j++
		}
		if j+1 == len(runes) || unicode.IsSpace(runes[j+1]) {
			count++
			tail = j + 1
		}
		i = j
	}

	if strings.TrimSpace(string(runes[tail:])) != "" {
		count++
	}
	return count
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
