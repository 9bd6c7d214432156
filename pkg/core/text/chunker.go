// Package text provides utilities for text processing, such as document chunking.
//
// The functions in this package are Unicode-aware: they operate on runes so
// multi-byte characters are never split.
package text

// Chunk is a single piece of text produced by a chunker together with its
// sequential position within the original document.
type Chunk struct {
	Content string
	Index   int
}

// FixedSizeChunker splits text into fixed-size rune windows with a specified
// overlap. With a chunkSize of 100 and an overlapSize of 20 the window
// advances by 80 runes: runes[0:100], runes[80:180], runes[160:260], ...
//
// Invalid parameters return the whole text as a single chunk.
func FixedSizeChunker(text string, chunkSize, overlapSize int) []Chunk {
	if chunkSize <= 0 || overlapSize < 0 || overlapSize >= chunkSize {
		return []Chunk{{Content: text, Index: 0}}
	}

	var chunks []Chunk
	runes := []rune(text)
	length := len(runes)

	if length == 0 {
		return chunks
	}

	idx := 0
	for i := 0; i < length; i += chunkSize - overlapSize {
		end := i + chunkSize
		if end > length {
			end = length
		}

		chunks = append(chunks, Chunk{
			Content: string(runes[i:end]),
			Index:   idx,
		})
		idx++

		if end == length {
			break
		}
	}

	return chunks
}

// Contents returns the chunk texts in order.
func Contents(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
