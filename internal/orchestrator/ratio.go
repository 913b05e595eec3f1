package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// DefaultRatio is used for progress estimation before any chapter has
// been translated (§4.6 step 3a).
const DefaultRatio = 1.0

// RatioHistory is the learned char->token ratio history persisted to
// token_ratios.json (§6.2, S6): `{ratios: [...], average: ..., samples:
// int}`. A zero-value RatioHistory behaves as "no history yet" — Average
// returns [DefaultRatio].
type RatioHistory struct {
	Ratios  []float64 `json:"ratios"`
	Average float64   `json:"average"`
	Samples int       `json:"samples"`
}

// RatioTracker guards a [RatioHistory] and persists it to disk on every
// update, matching the original's load-mutate-save-on-each-chapter
// pattern in translate_chapter.
type RatioTracker struct {
	mu   sync.Mutex
	path string
	hist RatioHistory
}

// LoadRatioTracker loads the ratio history from path. A missing file is
// not an error — it starts from an empty history with [DefaultRatio]
// (S6's "token_ratios.json missing" case).
func LoadRatioTracker(path string) (*RatioTracker, error) {
	t := &RatioTracker{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("orchestrator: load ratio history %q: %w", path, err)
	}

	if err := json.Unmarshal(data, &t.hist); err != nil {
		return nil, fmt.Errorf("orchestrator: parse ratio history %q: %w", path, err)
	}
	return t, nil
}

// Average returns the current learned ratio, or [DefaultRatio] if no
// samples have been recorded yet.
func (t *RatioTracker) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hist.Samples == 0 {
		return DefaultRatio
	}
	return t.hist.Average
}

// Record appends one chapter's observed ratio (outputTokens / inputChars)
// to the history, recomputes the mean, and persists the result to disk
// (§4.6 step 4, S6). inputChars of zero is a no-op — there is nothing to
// learn from a chapter with no source text.
func (t *RatioTracker) Record(outputTokens, inputChars int) error {
	if inputChars <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ratio := float64(outputTokens) / float64(inputChars)
	t.hist.Ratios = append(t.hist.Ratios, ratio)
	t.hist.Samples = len(t.hist.Ratios)

	sum := 0.0
	for _, r := range t.hist.Ratios {
		sum += r
	}
	t.hist.Average = sum / float64(t.hist.Samples)

	data, err := json.Marshal(t.hist)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal ratio history: %w", err)
	}
	if t.path == "" {
		return nil
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: save ratio history %q: %w", t.path, err)
	}
	return nil
}
