package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/retrieval"
)

// Node and task names of the retrieval task.
const (
	RetrievalTaskName    = "retrieval"
	NodeEnsureEmbeddings = "ensure_embeddings_in_data_cluster"
	NodeRetrieve         = "retrieve_relevant_embeddings"
)

const nilClusterMessage = "DataCluster cannot be nil."

// RetrievalRoutes advances on success and retries the same node on failure.
func RetrievalRoutes() engine.RoutingTable {
	return engine.RoutingTable{
		NodeEnsureEmbeddings: {
			engine.ExitSuccess: {Next: NodeRetrieve},
			engine.ExitFailure: {Next: NodeEnsureEmbeddings, Retry: true},
		},
		NodeRetrieve: {
			engine.ExitSuccess: {},
			engine.ExitFailure: {Next: NodeRetrieve, Retry: true},
		},
	}
}

// RetrievalContext is the per-run state of the retrieval task.
type RetrievalContext struct {
	APIs    *agent.APIManager
	Cluster *types.DataCluster
	Params  RetrievalParams

	// Matches holds the scored chunks of the last successful retrieve node.
	Matches []retrieval.Match
}

// RetrievalResult is what a retrieval run produced.
type RetrievalResult struct {
	engine.Result
	// Cluster is the synchronized cluster, including the appended similarity
	// history.
	Cluster *types.DataCluster
	// Chunks is the assembled answer of the last successful retrieve node.
	Chunks []types.EmbeddingChunk
	// Matches carries Chunks in the same order with their similarity.
	Matches []retrieval.Match
}

// RetrievalTask keeps cluster embeddings current and answers a prompt with
// the most similar chunks.
type RetrievalTask struct {
	generator agent.EmbeddingGenerator
	retriever *retrieval.Retriever
	logger    *slog.Logger
	engine    *engine.Engine[*RetrievalContext]
}

// NewRetrievalTask builds the task around gen. Engine options (observer, max
// steps) are passed through.
func NewRetrievalTask(gen agent.EmbeddingGenerator, logger *slog.Logger, opts ...engine.Option) (*RetrievalTask, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &RetrievalTask{
		generator: gen,
		retriever: retrieval.NewRetriever(logger),
		logger:    logger,
	}

	nodes := []engine.Node[*RetrievalContext]{
		guard(logger, NodeEnsureEmbeddings, t.EnsureEmbeddings),
		guard(logger, NodeRetrieve, t.RetrieveRelevant),
	}
	eng, err := engine.NewEngine(RetrievalTaskName, nodes, RetrievalRoutes(), append([]engine.Option{engine.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	t.engine = eng
	return t, nil
}

// Descriptor describes the retrieval task.
func (t *RetrievalTask) Descriptor() Descriptor {
	return Descriptor{
		Name:         RetrievalTaskName,
		Description:  "Ensure every item of the data cluster has embeddings, then return the chunks most similar to the prompt.",
		StartNode:    NodeEnsureEmbeddings,
		Routes:       RetrievalRoutes(),
		RequiredAPIs: []agent.API{agent.APIEmbeddings},
		InputSchema:  RetrievalSchema(),
	}
}

// Run executes the task. The cluster is modified in place.
func (t *RetrievalTask) Run(ctx context.Context, apis *agent.APIManager, cluster *types.DataCluster, params RetrievalParams) (RetrievalResult, error) {
	if err := params.Validate(); err != nil {
		return RetrievalResult{}, err
	}

	c := &RetrievalContext{APIs: apis, Cluster: cluster, Params: params}
	res, err := t.engine.Run(ctx, NodeEnsureEmbeddings, c)

	out := RetrievalResult{Result: res, Cluster: c.Cluster}
	if last, ok := res.Last(); ok && last.NodeName == NodeRetrieve && last.Succeeded() {
		out.Chunks = last.References.Embeddings
		out.Matches = c.Matches
	}
	return out, err
}

// EnsureEmbeddings is the first node: it synchronizes the cluster embeddings.
func (t *RetrievalTask) EnsureEmbeddings(ctx context.Context, h engine.History, c *RetrievalContext) engine.NodeResponse {
	if c.Cluster == nil {
		t.logger.Error("[Task] " + nilClusterMessage)
		return engine.Failure(nilClusterMessage)
	}
	if err := c.APIs.Require(agent.APIEmbeddings); err != nil {
		return failure(t.logger, NodeEnsureEmbeddings, "Failed to ensure embeddings", err)
	}

	c.Cluster.AssignIDs()
	syncer := retrieval.NewSynchronizer(t.generator, c.APIs, t.logger)
	updated, err := syncer.Synchronize(ctx, c.Cluster, c.Params.UpdateAll)
	if err != nil {
		return failure(t.logger, NodeEnsureEmbeddings, "Failed to ensure embeddings", err)
	}

	c.Cluster = updated
	return engine.Success(types.References{Cluster: updated})
}

// RetrieveRelevant is the second node: it embeds the prompt, selects the most
// similar chunks and assembles them per reference.
func (t *RetrievalTask) RetrieveRelevant(ctx context.Context, h engine.History, c *RetrievalContext) engine.NodeResponse {
	if c.Cluster == nil {
		t.logger.Error("[Task] " + nilClusterMessage)
		return engine.Failure(nilClusterMessage)
	}

	t.logger.Info("[Task] Retrieving embeddings", "prompt", c.Params.Prompt, "attempt", h.Attempt())
	promptChunks, err := t.generator.GenerateEmbeddings(ctx, c.APIs, c.Params.Prompt, types.LanguageText)
	if err != nil {
		return failure(t.logger, NodeRetrieve, "Retrieval failed", err)
	}
	if len(promptChunks) == 0 || len(promptChunks[0].Vector) == 0 {
		return failure(t.logger, NodeRetrieve, "Retrieval failed", errors.New("failed to generate embedding for the prompt"))
	}

	c.Cluster.AssignIDs()
	top := t.retriever.RetrieveTop(promptChunks[0].Vector, c.Cluster, c.Params.SimilarityThreshold, c.Params.MaxResults)
	matches := retrieval.AssembleMatches(top, c.Params.Prompt)
	chunks := make([]types.EmbeddingChunk, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, m.Chunk)
	}
	c.Matches = matches
	t.logger.Info("[Task] Retrieved embeddings", "count", len(chunks))

	return engine.Success(types.References{Embeddings: chunks})
}
