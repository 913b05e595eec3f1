package orchestrator

import (
	"errors"
	"fmt"
)

// ErrEmptyChapter is returned by [Translate] when given no source lines —
// matching the original's early-return "nothing to translate" path.
var ErrEmptyChapter = errors.New("orchestrator: chapter has no content")

// MalformedJSON is returned when a chunk's accumulated response could not
// be parsed as the expected JSON object (§4.1, §4.6 step 3c). It carries
// the raw payload so the caller can surface it for debugging — the chunk
// is fatal and the chapter is aborted (§4.6's failure semantics).
type MalformedJSON struct {
	ChunkIndex int
	Raw        string
	Err        error
}

func (e *MalformedJSON) Error() string {
	return fmt.Sprintf("orchestrator: chunk %d: malformed JSON response: %v", e.ChunkIndex, e.Err)
}

func (e *MalformedJSON) Unwrap() error { return e.Err }
