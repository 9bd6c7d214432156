package retrieval

import (
	"log/slog"
	"math"

	"github.com/sanonone/kektorflow/pkg/core/distance"
	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/metrics"
	"github.com/tidwall/btree"
)

const (
	// MinSimilarityThreshold is the floor below which the acceptance bar is
	// never relaxed.
	MinSimilarityThreshold = 0.2
	// RelaxationFactor multiplies the threshold on every relaxation step.
	RelaxationFactor = 0.75
)

// Candidate is one scored chunk. Chunk points into the owning reference's
// chunk list, so metadata appended through it is stored on the reference.
type Candidate struct {
	Similarity    float64
	ReferenceType string
	Reference     types.Reference
	Chunk         *types.EmbeddingChunk

	// seq is the generation order, the tie-break for equal similarities.
	seq int
}

// Retriever scores every stored chunk against a query vector by brute force.
type Retriever struct {
	Logger *slog.Logger
}

func NewRetriever(logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{Logger: logger}
}

func (r *Retriever) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Candidates scores every chunk of every Embeddable item, in collection order
// then chunk order. Malformed chunks are logged and skipped.
func (r *Retriever) Candidates(query []float32, cluster *types.DataCluster) []Candidate {
	if cluster == nil {
		return nil
	}

	var out []Candidate
	for _, col := range cluster.Collections() {
		for _, item := range col.Items {
			emb, ok := item.(types.Embeddable)
			if !ok {
				continue
			}
			chunks := emb.Embeddings()
			for i := range chunks {
				chunk := &chunks[i]
				if err := chunk.Validate(len(query)); err != nil {
					r.logger().Warn("[Retrieval] Skipping malformed chunk", "collection", col.Name, "id", item.ID(), "position", i, "error", err)
					continue
				}
				sim, err := distance.CosineSimilarity(query, chunk.Vector)
				if err != nil || math.IsNaN(sim) {
					r.logger().Warn("[Retrieval] Skipping unscorable chunk", "collection", col.Name, "id", item.ID(), "position", i, "error", err)
					continue
				}
				out = append(out, Candidate{
					Similarity:    sim,
					ReferenceType: col.Name,
					Reference:     item,
					Chunk:         chunk,
					seq:           len(out),
				})
			}
		}
	}
	return out
}

// RetrieveTop returns at most maxResults candidates for query. When the
// cluster holds no more than maxResults chunks all of them are returned in
// generation order and the threshold is ignored.
func (r *Retriever) RetrieveTop(query []float32, cluster *types.DataCluster, threshold float64, maxResults int) []Candidate {
	cands := r.Candidates(query, cluster)
	metrics.RetrievalCandidates.Observe(float64(len(cands)))

	selected, final := Select(cands, threshold, maxResults)
	if final != threshold {
		r.logger().Info("[Retrieval] Relaxed similarity threshold", "from", threshold, "to", final, "matches", len(selected), "max_results", maxResults)
	}
	r.logger().Debug("[Retrieval] Selected candidates", "candidates", len(cands), "selected", len(selected))
	return selected
}

// Select applies adaptive threshold relaxation to cands and returns the chosen
// candidates together with the threshold that was finally applied.
//
// While fewer than maxResults candidates reach the threshold and the threshold
// is above MinSimilarityThreshold, it is multiplied by RelaxationFactor and the
// full set is filtered again. The result is sorted by similarity descending,
// ties in generation order, and truncated to maxResults. It is never padded
// with candidates below the final threshold.
func Select(cands []Candidate, threshold float64, maxResults int) ([]Candidate, float64) {
	if maxResults <= 0 {
		return nil, threshold
	}
	if len(cands) <= maxResults {
		return cands, threshold
	}

	filtered := filterByThreshold(cands, threshold)
	for len(filtered) < maxResults && threshold > MinSimilarityThreshold {
		threshold *= RelaxationFactor
		metrics.RetrievalRelaxationsTotal.Inc()
		filtered = filterByThreshold(cands, threshold)
	}

	return topK(filtered, maxResults), threshold
}

func filterByThreshold(cands []Candidate, threshold float64) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if c.Similarity >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// byRank orders by similarity descending, then generation order. seq is
// unique, so no two candidates compare equal.
func byRank(a, b Candidate) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.seq < b.seq
}

func topK(cands []Candidate, k int) []Candidate {
	tr := btree.NewBTreeG(byRank)
	for _, c := range cands {
		tr.Set(c)
	}

	out := make([]Candidate, 0, min(k, tr.Len()))
	tr.Scan(func(c Candidate) bool {
		out = append(out, c)
		return len(out) < k
	})
	return out
}
