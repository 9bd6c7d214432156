package retrieval

import (
	"fmt"
	"sort"

	"github.com/sanonone/kektorflow/pkg/core/types"
)

// Match is one assembled chunk together with the score it was selected with.
// Chunk is a detached copy: later retrievals against the same cluster do not
// change it.
type Match struct {
	ReferenceID   string
	ReferenceType string
	Similarity    float64
	Chunk         types.EmbeddingChunk
}

// Assemble records query on every selected chunk's similarity history and
// returns the chunks grouped by owning reference. Groups appear in the order
// their reference is first met in cands; inside a group chunks follow Index.
func Assemble(cands []Candidate, query string) []types.EmbeddingChunk {
	matches := AssembleMatches(cands, query)
	out := make([]types.EmbeddingChunk, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Chunk)
	}
	return out
}

// AssembleMatches is Assemble keeping each chunk's similarity and owner.
func AssembleMatches(cands []Candidate, query string) []Match {
	var order []string
	groups := make(map[string][]Candidate)

	for _, c := range cands {
		if c.Chunk == nil {
			continue
		}
		c.Chunk.AppendSimilarity(query, c.Similarity)

		key := groupKey(c)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	out := make([]Match, 0, len(cands))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Chunk.Index < group[j].Chunk.Index })
		for _, c := range group {
			m := Match{
				ReferenceType: c.ReferenceType,
				Similarity:    c.Similarity,
				Chunk:         c.Chunk.Clone(),
			}
			if c.Reference != nil {
				m.ReferenceID = c.Reference.ID()
			}
			out = append(out, m)
		}
	}
	return out
}

// groupKey is the reference id. References without an id fall back to their
// identity within this call.
func groupKey(c Candidate) string {
	if c.Reference == nil {
		return fmt.Sprintf("%s/%p", c.ReferenceType, c.Chunk)
	}
	if id := c.Reference.ID(); id != "" {
		return id
	}
	return fmt.Sprintf("%s/%p", c.ReferenceType, c.Reference)
}
