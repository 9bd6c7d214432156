package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sanonone/kektorflow/internal/server"
	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/client"
	"github.com/sanonone/kektorflow/pkg/cluster"
	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/llm"
	"github.com/sanonone/kektorflow/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unitEmbedder struct{}

func (unitEmbedder) Model() string                                    { return "unit" }
func (unitEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1}, nil }

type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string, string, float64) (*llm.Audio, error) {
	return &llm.Audio{Data: []byte{0}, Format: "mp3"}, nil
}

// wordGenerator embeds on two axes: texts with "kektor" and the rest.
type wordGenerator struct{ fail bool }

func (g wordGenerator) GenerateEmbeddings(_ context.Context, _ *agent.APIManager, input string, _ types.Language) ([]types.EmbeddingChunk, error) {
	if g.fail {
		return nil, errors.New("model offline")
	}
	v := []float32{0, 1}
	if strings.Contains(input, "kektor") {
		v = []float32{1, 0}
	}
	return []types.EmbeddingChunk{{Vector: v, TextContent: input}}, nil
}

type audioFile struct{}

func (audioFile) GenerateSpeech(_ context.Context, _ *agent.APIManager, input, _ string, _ float64) (types.References, error) {
	return types.References{Files: []*types.FileReference{{Filename: "speech.mp3", Path: "/audio/speech.mp3"}}}, nil
}

func startServer(t *testing.T, gen agent.EmbeddingGenerator) (*client.Client, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := tasks.NewRetrievalTask(gen, logger, engine.WithMaxSteps(2))
	require.NoError(t, err)
	st, err := tasks.NewSpeechTask(audioFile{}, logger)
	require.NoError(t, err)

	s, err := server.NewServer(":0", "token", server.Deps{
		APIs:      &agent.APIManager{Embedder: unitEmbedder{}, Speech: silentSpeaker{}},
		Store:     cluster.NewStore(nil, ""),
		Retrieval: rt,
		Speech:    st,
		Logger:    logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL, "token"), ts.URL
}

func TestClientRetrieveAgainstServer(t *testing.T) {
	ctx := context.Background()
	c, _ := startServer(t, wordGenerator{})
	require.NoError(t, c.Health(ctx))

	stats, err := c.ReplaceCluster(ctx, &types.DataCluster{
		Files: []*types.FileReference{
			{Filename: "README.md", Content: "kektor flow routes nodes"},
			{Filename: "TODO.txt", Content: "buy milk"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Stats.References)

	params := tasks.DefaultRetrievalParams("what is kektor")
	params.MaxResults = 1
	run, err := c.Retrieve(ctx, params)
	require.NoError(t, err)
	assert.True(t, run.Succeeded)
	require.Len(t, run.Chunks, 1)
	assert.Contains(t, run.Chunks[0].TextContent, "README.md")

	full, err := c.Cluster(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, full.Cluster)
	assert.Len(t, full.Cluster.Files[0].Embeddings()[0].SimilarityHistory(), 1)

	descs, err := c.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, descs, 2)
}

func TestClientSurfacesFailedRuns(t *testing.T) {
	ctx := context.Background()
	c, _ := startServer(t, wordGenerator{fail: true})
	_, err := c.ReplaceCluster(ctx, &types.DataCluster{Messages: []*types.MessageReference{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)

	_, err = c.Retrieve(ctx, tasks.DefaultRetrievalParams("hi"))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.NotNil(t, apiErr.Run)
	assert.Len(t, apiErr.Run.Steps, 2)

	_, err = c.Retrieve(ctx, tasks.RetrievalParams{Prompt: "hi"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClientAsyncSpeech(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _ := startServer(t, wordGenerator{})

	run, err := c.StartSpeech(ctx, tasks.DefaultSpeechParams("hello there"))
	require.NoError(t, err)
	require.NoError(t, run.Wait(ctx, 10*time.Millisecond))
	assert.Equal(t, "completed", run.Status)
	require.NotNil(t, run.Result)
	require.Len(t, run.Result.Files, 1)
	assert.Equal(t, "/audio/speech.mp3", run.Result.Files[0].Path)
}

func TestClientAuth(t *testing.T) {
	_, url := startServer(t, wordGenerator{})
	ctx := context.Background()

	anon := client.New(url, "")
	require.NoError(t, anon.Health(ctx), "health is public")

	_, err := anon.Tasks(ctx)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bearer token")
}
