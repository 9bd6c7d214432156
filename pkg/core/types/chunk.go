// Package types holds the reference model shared by the task engine and the
// retrieval pipeline: content references, their embedding chunks and the
// DataCluster that groups them into typed collections.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SimilarityHistoryKey is the creation-metadata key under which every chunk
// accumulates the queries it matched.
const SimilarityHistoryKey = "prompt_similarity_history"

var (
	// ErrEmptyVector marks a chunk that carries no vector data.
	ErrEmptyVector = errors.New("embedding chunk has an empty vector")
	// ErrNegativeIndex marks a chunk whose position is below zero.
	ErrNegativeIndex = errors.New("embedding chunk has a negative index")
	// ErrDimensionMismatch marks a chunk whose vector length differs from the query.
	ErrDimensionMismatch = errors.New("embedding chunk dimension mismatch")
)

// EmbeddingChunk is one vectorized, ordered fragment of a reference's content.
// Index is the authoritative intra-reference position and is never rewritten
// by downstream processing. CreationMetadata is append-only.
type EmbeddingChunk struct {
	Vector           []float32      `json:"vector"`
	TextContent      string         `json:"text_content"`
	Index            int            `json:"index"`
	CreationMetadata map[string]any `json:"creation_metadata,omitempty"`

	// raw and decodeErr are set when a stored record could not be decoded.
	// The raw bytes are written back untouched so a malformed record survives a
	// load/save cycle.
	raw       json.RawMessage
	decodeErr error
}

// SimilarityRecord is one entry of a chunk's similarity history.
type SimilarityRecord struct {
	Query      string  `json:"query"`
	Similarity float64 `json:"similarity"`
}

type chunkAlias EmbeddingChunk

// ParseChunk decodes a single stored chunk record. It never fails: a record
// that cannot be coerced into the chunk shape is returned as a malformed chunk
// whose Validate reports the decode error.
func ParseChunk(raw json.RawMessage) EmbeddingChunk {
	var c chunkAlias
	if err := json.Unmarshal(raw, &c); err != nil {
		return EmbeddingChunk{
			raw:       append(json.RawMessage(nil), raw...),
			decodeErr: fmt.Errorf("decode embedding chunk: %w", err),
		}
	}
	return EmbeddingChunk(c)
}

// MarshalJSON writes malformed records back in their original form.
func (c EmbeddingChunk) MarshalJSON() ([]byte, error) {
	if c.decodeErr != nil && c.raw != nil {
		return c.raw, nil
	}
	return json.Marshal(chunkAlias(c))
}

// Malformed reports whether the chunk came from a record that failed to decode.
func (c *EmbeddingChunk) Malformed() bool {
	return c.decodeErr != nil
}

// Validate checks that the chunk can take part in a similarity comparison
// against a query of the given dimension. A dim of 0 skips the length check.
func (c *EmbeddingChunk) Validate(dim int) error {
	if c.decodeErr != nil {
		return c.decodeErr
	}
	if len(c.Vector) == 0 {
		return ErrEmptyVector
	}
	if c.Index < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIndex, c.Index)
	}
	if dim > 0 && len(c.Vector) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(c.Vector), dim)
	}
	return nil
}

// AppendSimilarity records that the chunk matched query with the given score.
// Existing history entries are preserved in order.
func (c *EmbeddingChunk) AppendSimilarity(query string, similarity float64) {
	if c.CreationMetadata == nil {
		c.CreationMetadata = make(map[string]any)
	}
	entry := map[string]any{"query": query, "similarity": similarity}

	var history []any
	switch existing := c.CreationMetadata[SimilarityHistoryKey].(type) {
	case nil:
	case []any:
		history = existing
	case []map[string]any:
		for _, e := range existing {
			history = append(history, e)
		}
	default:
		// Unknown shape: keep it as the first entry rather than dropping it.
		history = []any{existing}
	}
	c.CreationMetadata[SimilarityHistoryKey] = append(history, entry)
}

// Clone returns a copy of c that shares no memory with it. Nested metadata
// maps and lists are copied too, so later appends to c do not show through.
func (c EmbeddingChunk) Clone() EmbeddingChunk {
	out := c
	if c.Vector != nil {
		out.Vector = append([]float32(nil), c.Vector...)
	}
	if c.CreationMetadata != nil {
		out.CreationMetadata = cloneValue(c.CreationMetadata).(map[string]any)
	}
	if c.raw != nil {
		out.raw = append(json.RawMessage(nil), c.raw...)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = cloneValue(e)
		}
		return s
	case []map[string]any:
		s := make([]map[string]any, len(v))
		for i, e := range v {
			s[i] = cloneValue(e).(map[string]any)
		}
		return s
	default:
		return v
	}
}

// SimilarityHistory returns the decoded similarity history, skipping entries
// that do not have the expected shape.
func (c *EmbeddingChunk) SimilarityHistory() []SimilarityRecord {
	entries, _ := c.CreationMetadata[SimilarityHistoryKey].([]any)
	out := make([]SimilarityRecord, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		q, _ := m["query"].(string)
		s, _ := m["similarity"].(float64)
		out = append(out, SimilarityRecord{Query: q, Similarity: s})
	}
	return out
}

// EmbeddingList is the ordered chunk list carried by an Embeddable reference.
// Decoding is lenient per record, see ParseChunk.
type EmbeddingList []EmbeddingChunk

func (l *EmbeddingList) UnmarshalJSON(data []byte) error {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("embedding list must be an array: %w", err)
	}
	if records == nil {
		*l = nil
		return nil
	}
	out := make(EmbeddingList, 0, len(records))
	for _, rec := range records {
		out = append(out, ParseChunk(rec))
	}
	*l = out
	return nil
}
