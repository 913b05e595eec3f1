package glossary

import (
	"regexp"
	"strings"
	"unicode"
)

// RewriteWithCasePreservation implements rewrite_with_case_preservation
// (§4.2), the only rewrite primitive in the store: for every
// case-insensitive occurrence of incorrect in each line, it substitutes
// correct word-by-word, matching the case class (ALL-CAPS / Title /
// lowercase / mixed) of each old word onto the corresponding new word.
// Word-count mismatches between the matched phrase and the replacement are
// padded with empty strings so the operation is total (P3) — extra new
// words (replacement longer) are appended verbatim; extra old words
// (replacement shorter) are simply dropped, since there is no
// corresponding new word to emit.
func RewriteWithCasePreservation(lines []string, incorrect, correct string) []string {
	if incorrect == "" {
		out := make([]string, len(lines))
		copy(out, lines)
		return out
	}

	pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(incorrect))
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = pattern.ReplaceAllStringFunc(line, func(matched string) string {
			return rewritePhrase(matched, correct)
		})
	}
	return out
}

// rewritePhrase rewrites one matched occurrence of the incorrect phrase,
// old, into the replacement phrase built from correct's words, applying
// match_case per word pair.
func rewritePhrase(old, correct string) string {
	oldWords := strings.Fields(old)
	newWords := strings.Fields(correct)

	n := len(oldWords)
	if len(newWords) > n {
		n = len(newWords)
	}

	result := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var ow, nw string
		if i < len(oldWords) {
			ow = oldWords[i]
		}
		if i < len(newWords) {
			nw = newWords[i]
		}
		if nw == "" {
			continue
		}
		if ow == "" {
			result = append(result, nw)
			continue
		}
		result = append(result, matchCase(ow, nw))
	}
	return strings.Join(result, " ")
}

// matchCase renders newWord in the same case class as oldWord:
// ALL-CAPS, Title, lowercase, or — for anything else (mixed case) —
// newWord is returned unchanged, matching the original's fallthrough of
// "preserve as-is".
func matchCase(oldWord, newWord string) string {
	switch {
	case isAllUpper(oldWord):
		return strings.ToUpper(newWord)
	case isTitleCase(oldWord):
		return titleCase(newWord)
	case isAllLower(oldWord):
		return strings.ToLower(newWord)
	default:
		return newWord
	}
}

// isAllUpper reports whether word has at least one cased rune and none of
// them are lowercase (Python's str.isupper()).
func isAllUpper(word string) bool {
	hasCased := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

// isAllLower reports whether word has at least one cased rune and none of
// them are uppercase (Python's str.islower()).
func isAllLower(word string) bool {
	hasCased := false
	for _, r := range word {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			hasCased = true
		}
	}
	return hasCased
}

// isTitleCase reports whether word looks like a Title-cased word: its
// first cased rune is uppercase and every cased rune after it is
// lowercase (Python's str.istitle() applied to a single word).
func isTitleCase(word string) bool {
	runes := []rune(word)
	sawFirstCased := false
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			continue
		}
		if !sawFirstCased {
			if !unicode.IsUpper(r) {
				return false
			}
			sawFirstCased = true
			continue
		}
		if !unicode.IsLower(r) {
			return false
		}
	}
	return sawFirstCased
}

// titleCase upper-cases the first rune and lower-cases the rest.
func titleCase(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	var b strings.Builder
	b.WriteRune(unicode.ToUpper(runes[0]))
	for _, r := range runes[1:] {
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
