package glossary

import (
	"reflect"
	"testing"
)

func TestScanText(t *testing.T) {
	t.Parallel()
	known := []Entity{
		{Category: Characters, Untranslated: "张三", Translation: "Zhang San", LastChapter: 1},
		{Category: Places, Untranslated: "天海", Translation: "Skyocean", LastChapter: 1},
		{Category: Organizations, Untranslated: "青云门", Translation: "Azure Cloud Sect", LastChapter: 1},
	}
	text := "张三 travelled far from 天海 that day."

	found := ScanText(text, known, 5)
	if len(found) != 2 {
		t.Fatalf("ScanText() returned %d entities, want 2", len(found))
	}
	for _, e := range found {
		if e.LastChapter != 5 {
			t.Errorf("ScanText() entity %q has LastChapter %d, want 5", e.Untranslated, e.LastChapter)
		}
	}
}

func TestScanText_NoMatches(t *testing.T) {
	t.Parallel()
	known := []Entity{{Category: Characters, Untranslated: "张三", Translation: "Zhang San"}}
	found := ScanText("nothing relevant here", known, 1)
	if len(found) != 0 {
		t.Fatalf("ScanText() returned %d entities, want 0", len(found))
	}
}

func TestScanText_NFCNormalization(t *testing.T) {
	t.Parallel()
	// The glossary entry uses the precomposed "e-acute" codepoint (U+00E9);
	// the source text spells the same word with the decomposed sequence "e"
	// (U+0065) followed by a combining acute accent (U+0301). Both must
	// normalize to the same NFC form and be recognised as a match.
	precomposed := "café"
	decomposed := "caf" + "é"
	known := []Entity{{Category: Places, Untranslated: precomposed, Translation: "Coffee House"}}

	found := ScanText("We visited the "+decomposed+" yesterday.", known, 2)
	if len(found) != 1 {
		t.Fatalf("ScanText() with decomposed text returned %d entities, want 1", len(found))
	}
}

func TestScanLines(t *testing.T) {
	t.Parallel()
	known := []Entity{{Category: Characters, Untranslated: "张三", Translation: "Zhang San"}}
	lines := []string{"First line mentions nothing.", "张三 appears here."}

	found := ScanLines(lines, known, 3)
	if !reflect.DeepEqual([]Entity{{Category: Characters, Untranslated: "张三", Translation: "Zhang San", LastChapter: 3}}, found) {
		t.Errorf("ScanLines() = %+v, want single match with LastChapter 3", found)
	}
}

func TestScanText_EmptyUntranslatedSkipped(t *testing.T) {
	t.Parallel()
	known := []Entity{{Category: Characters, Untranslated: "", Translation: "Nobody"}}
	found := ScanText("anything at all", known, 1)
	if len(found) != 0 {
		t.Fatalf("ScanText() should skip entities with empty Untranslated, got %d", len(found))
	}
}
