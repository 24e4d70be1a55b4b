// Package chunk splits note text into overlapping, boundary-respecting
// segments for embedding and retrieval.
//
// The splitter tries natural boundaries first (paragraphs, lines, sentences,
// words) before falling back to character-level splitting, so sentences are
// not cut in half. Chunk order reconstructs the document's reading order,
// which downstream code relies on for contiguous chunk indices.
package chunk

import "strings"

// Default chunking parameters for the main ingestion path.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// separators in order of preference. The empty string means character-level
// splitting and must stay last.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split splits text into chunks of at most size bytes with up to overlap
// bytes shared between consecutive chunks.
//
// Empty or whitespace-only text yields no chunks. Text that already fits in
// a single chunk is returned as-is (trimmed). Chunks are non-empty and
// whitespace-trimmed, in reading order.
func Split(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if len(text) <= size {
		return []string{strings.TrimSpace(text)}
	}

	raw := recursiveSplit(text, size, overlap, separators)

	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// recursiveSplit splits text by the first separator, merges small segments
// into chunks, and recurses with the next separator on any segment that is
// still too large.
func recursiveSplit(text string, size, overlap int, seps []string) []string {
	var final []string

	sep := ""
	if len(seps) > 0 {
		sep = seps[0]
	}

	// strings.Split with an empty separator splits after each UTF-8 rune,
	// so the character-level fallback never cuts a multi-byte sequence.
	splits := strings.Split(text, sep)

	var good []string
	for _, s := range splits {
		if len(s) <= size {
			good = append(good, s)
			continue
		}

		// Segment too large: flush accumulated segments first, then
		// decompose it with the next separator.
		if len(good) > 0 {
			final = append(final, mergeSplits(good, size, overlap, sep)...)
			good = nil
		}

		if len(seps) > 1 {
			final = append(final, recursiveSplit(s, size, overlap, seps[1:])...)
		} else {
			final = append(final, sliceFixed(s, size, overlap)...)
		}
	}

	if len(good) > 0 {
		final = append(final, mergeSplits(good, size, overlap, sep)...)
	}

	return final
}

// mergeSplits accumulates segments into a running buffer until adding the
// next one would exceed size. The finished chunk is emitted and the buffer is
// rewound to the trailing segments that fit within overlap, so the next chunk
// starts with that overlapping tail.
func mergeSplits(splits []string, size, overlap int, sep string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	for _, s := range splits {
		sepLen := 0
		if len(current) > 0 {
			sepLen = len(sep)
		}

		if currentLen+len(s)+sepLen > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, sep))

			// Keep trailing segments that fit within the overlap window.
			overlapLen := 0
			var tail []string
			for i := len(current) - 1; i >= 0; i-- {
				prev := current[i]
				if overlapLen+len(prev)+len(sep) > overlap {
					break
				}
				tail = append([]string{prev}, tail...)
				overlapLen += len(prev) + len(sep)
			}

			current = tail
			currentLen = overlapLen
		}

		current = append(current, s)
		currentLen += len(s) + sepLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}

	return chunks
}

// sliceFixed is the last-resort fixed-width slicer, advancing by
// size-overlap per step. It is unreachable in practice because the
// character-level separator decomposes any segment below size first.
func sliceFixed(s string, size, overlap int) []string {
	step := size - overlap
	if step < 1 {
		step = size
	}

	var out []string
	for i := 0; i < len(s); i += step {
		end := min(i+size, len(s))
		out = append(out, s[i:end])
	}
	return out
}
