package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/cluster"
	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/engine"
	"github.com/sanonone/kektorflow/pkg/llm"
	"github.com/sanonone/kektorflow/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Model() string { return "fake" }
func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeSpeaker struct{}

func (fakeSpeaker) Speak(context.Context, string, string, float64) (*llm.Audio, error) {
	return &llm.Audio{Data: []byte("ID3"), Format: "mp3"}, nil
}

// axisGenerator puts text mentioning "alpha" on the x axis and the rest on y.
type axisGenerator struct{ fail bool }

func (g axisGenerator) GenerateEmbeddings(_ context.Context, _ *agent.APIManager, input string, _ types.Language) ([]types.EmbeddingChunk, error) {
	if g.fail {
		return nil, errors.New("backend down")
	}
	v := []float32{0, 1}
	if strings.Contains(input, "alpha") {
		v = []float32{1, 0}
	}
	return []types.EmbeddingChunk{{Vector: v, TextContent: input}}, nil
}

type fileSpeech struct{}

func (fileSpeech) GenerateSpeech(context.Context, *agent.APIManager, string, string, float64) (types.References, error) {
	return types.References{Files: []*types.FileReference{{RefID: "a1", Filename: "speech-a1.mp3", Path: "/tmp/speech-a1.mp3"}}}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, gen agent.EmbeddingGenerator, token string) (*Server, *cluster.Store) {
	t.Helper()
	logger := quietLogger()
	rt, err := tasks.NewRetrievalTask(gen, logger, engine.WithMaxSteps(3))
	require.NoError(t, err)
	st, err := tasks.NewSpeechTask(fileSpeech{}, logger)
	require.NoError(t, err)

	store := cluster.NewStore(&types.DataCluster{
		Messages: []*types.MessageReference{
			{Role: "user", Content: "alpha release notes"},
			{Role: "user", Content: "lunch menu"},
		},
	}, filepath.Join(t.TempDir(), "cluster.json"))

	s, err := NewServer(":0", token, Deps{
		APIs:      &agent.APIManager{Embedder: fakeEmbedder{}, Speech: fakeSpeaker{}},
		Store:     store,
		Retrieval: rt,
		Speech:    st,
		Logger:    logger,
	})
	require.NoError(t, err)
	return s, store
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndMetricsBypassAuth(t *testing.T) {
	s, _ := newTestServer(t, axisGenerator{}, "secret")
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), "GET", "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), "GET", "/metrics", "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, s.Handler(), "GET", "/v1/tasks", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), "GET", "/v1/tasks", "", "Authorization", "Bearer secret").Code)
}

func TestRetrievalEndpoint(t *testing.T) {
	s, store := newTestServer(t, axisGenerator{}, "")

	rec := do(t, s.Handler(), "POST", "/v1/tasks/retrieval", `{"prompt":"alpha","max_results":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Succeeded)
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, tasks.NodeEnsureEmbeddings, resp.Steps[0].Node)
	require.Len(t, resp.Chunks, 1)
	assert.Contains(t, resp.Chunks[0].TextContent, "alpha release notes")
	require.NotNil(t, resp.Cluster)
	assert.Equal(t, 2, resp.Cluster.Embedded)

	reloaded, err := cluster.Load(store.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Stats().Embedded, "embeddings are persisted")
}

func TestRetrievalEndpointRejectsBadParams(t *testing.T) {
	s, _ := newTestServer(t, axisGenerator{}, "")
	rec := do(t, s.Handler(), "POST", "/v1/tasks/retrieval", `{"max_results":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid task parameters")
}

func TestRetrievalEndpointStepBudget(t *testing.T) {
	s, _ := newTestServer(t, axisGenerator{fail: true}, "")
	rec := do(t, s.Handler(), "POST", "/v1/tasks/retrieval", `{"prompt":"alpha"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Succeeded)
	assert.Len(t, resp.Steps, 3)
	assert.True(t, strings.HasPrefix(resp.Steps[0].Message, "Failed to ensure embeddings: "))
	assert.True(t, strings.HasSuffix(resp.Steps[0].Message, "backend down"))
}

func TestSpeechEndpointAsync(t *testing.T) {
	s, _ := newTestServer(t, axisGenerator{}, "")
	rec := do(t, s.Handler(), "POST", "/v1/tasks/speech?async=true", `{"text":"hello"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var info RunInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.NotEmpty(t, info.ID)
	assert.Equal(t, "/v1/runs/"+info.ID, rec.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rec := do(t, s.Handler(), "GET", "/v1/runs/"+info.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		var got RunInfo
		return json.Unmarshal(rec.Body.Bytes(), &got) == nil && got.Status == RunStatusCompleted &&
			got.Result != nil && len(got.Result.Files) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), "GET", "/v1/runs/unknown", "").Code)
}

func TestClusterEndpoints(t *testing.T) {
	s, _ := newTestServer(t, axisGenerator{}, "")

	rec := do(t, s.Handler(), "PUT", "/v1/cluster", `{"files":[{"filename":"a.md","content":"# alpha"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s.Handler(), "GET", "/v1/cluster?full=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ClusterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Stats.References)
	require.NotNil(t, resp.Cluster)
	require.Len(t, resp.Cluster.Files, 1)
	assert.NotEmpty(t, resp.Cluster.Files[0].RefID)

	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), "PUT", "/v1/cluster", "{").Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	s, _ := newTestServer(t, axisGenerator{}, "")
	h := s.RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := do(t, h, "GET", "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(tasks.ErrInvalidParams))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusBadGateway, statusFor(engine.ErrMaxSteps))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
