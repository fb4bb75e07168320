package chunker

import "strings"

const (
	DefaultSize    = 1000
	DefaultOverlap = 200

	// MinChunkLength is the minimum number of meaningful characters a chunk
	// must carry to be worth persisting.
	MinChunkLength = 20
)

type Chunker struct {
	Size    int
	Overlap int
}

func New(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split cuts text into overlapping fixed-size windows. Consecutive chunks
// share exactly Overlap runes; the final chunk may be shorter than Size.
func (c Chunker) Split(text string) []string {
	runes := []rune(text)
	var chunks []string

	for start := 0; start < len(runes); start += c.Size - c.Overlap {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Meaningful reports whether a chunk carries enough content to persist.
func Meaningful(chunk string) bool {
	return len(strings.TrimSpace(chunk)) >= MinChunkLength
}
