package orchestrator

// SplitByN splits lines into n approximately-equal, contiguous slices,
// spreading the remainder across the earliest chunks (§4.6 step 1),
// grounded on original_source/translation_engine.py's split_by_n.
// n is clamped to [1, len(lines)]; an empty input yields a single empty
// chunk.
func SplitByN(lines []string, n int) [][]string {
	if len(lines) == 0 {
		return [][]string{lines}
	}
	if n < 1 {
		n = 1
	}
	if n > len(lines) {
		n = len(lines)
	}

	chunkSize, remainder := len(lines)/n, len(lines)%n
	chunks := make([][]string, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := chunkSize
		if i < remainder {
			size++
		}
		chunks = append(chunks, lines[start:start+size])
		start += size
	}
	return chunks
}

// charCount returns the total number of runes across every line — the
// "total_chars" input to §4.6 step 1's chunk-count formula.
func charCount(lines []string) int {
	n := 0
	for _, line := range lines {
		n += len([]rune(line))
	}
	return n
}

// chunkCount computes n = max(1, ceil(totalChars / maxChars)) (§4.6 step 1).
func chunkCount(totalChars, maxChars int) int {
	if maxChars <= 0 {
		return 1
	}
	n := (totalChars + maxChars - 1) / maxChars
	if n < 1 {
		n = 1
	}
	return n
}
