package glossary

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ScanText implements scan_text (§4.2): given a block of text and a
// candidate set of known entities, it returns the subset whose
// Untranslated form occurs as a substring of the NFC-normalized text.
// Every entity that occurs has its LastChapter refreshed to currentChapter
// in the returned copies (P6 — occurrence is decided purely by NFC
// substring containment).
func ScanText(text string, known []Entity, currentChapter int) []Entity {
	combined := norm.NFC.String(text)

	var found []Entity
	for _, e := range known {
		needle := norm.NFC.String(e.Untranslated)
		if needle == "" {
			continue
		}
		if strings.Contains(combined, needle) {
			e.LastChapter = currentChapter
			found = append(found, e)
		}
	}
	return found
}

// ScanLines is a convenience wrapper over ScanText for chunk text
// represented as a sequence of lines, as the chapter content always is
// (§3's Chapter.content, §4.6's per-chunk line slices).
func ScanLines(lines []string, known []Entity, currentChapter int) []Entity {
	return ScanText(strings.Join(lines, "\n"), known, currentChapter)
}
