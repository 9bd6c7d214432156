package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var query = []float32{1, 0}

// vecWithSimilarity returns a unit vector whose cosine with query is sim.
func vecWithSimilarity(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func chunk(index int, sim float64, text string) types.EmbeddingChunk {
	return types.EmbeddingChunk{Vector: vecWithSimilarity(sim), TextContent: text, Index: index}
}

func fileContent(id string, chunks ...types.EmbeddingChunk) *types.FileContentReference {
	f := &types.FileContentReference{RefID: id, Filename: id + ".txt", Content: "content of " + id}
	if len(chunks) > 0 {
		f.SetEmbeddings(chunks)
	}
	return f
}

func similarities(cands []Candidate) []float64 {
	out := make([]float64, len(cands))
	for i, c := range cands {
		out[i] = math.Round(c.Similarity*1000) / 1000
	}
	return out
}

func TestRetrieveAllWhenUnderMaxResults(t *testing.T) {
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{
		fileContent("a", chunk(0, 0.1, "a0"), chunk(1, 0.05, "a1")),
		fileContent("b", chunk(0, 0.9, "b0")),
	}}

	got := NewRetriever(nil).RetrieveTop(query, cluster, 0.99, 3)
	assert.Equal(t, []float64{0.1, 0.05, 0.9}, similarities(got), "generation order, threshold ignored")
}

func TestRelaxationExample(t *testing.T) {
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{
		fileContent("a", chunk(0, 0.3, "a0"), chunk(1, 0.9, "a1")),
		fileContent("b", chunk(0, 0.1, "b0"), chunk(1, 0.5, "b1")),
	}}

	cands := NewRetriever(nil).Candidates(query, cluster)
	got, final := Select(cands, 0.6, 3)

	assert.Equal(t, []float64{0.9, 0.5, 0.3}, similarities(got))
	assert.InDelta(t, 0.6*0.75*0.75*0.75, final, 1e-9)
}

func TestRelaxationStopsAtFloor(t *testing.T) {
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{
		fileContent("a", chunk(0, 0.15, "a0"), chunk(1, 0.1, "a1"), chunk(2, 0.9, "a2"), chunk(3, 0.05, "a3")),
	}}

	cands := NewRetriever(nil).Candidates(query, cluster)
	got, final := Select(cands, 0.6, 3)

	assert.Equal(t, []float64{0.9}, similarities(got), "never padded below the threshold")
	assert.LessOrEqual(t, final, MinSimilarityThreshold)
	assert.Greater(t, final, MinSimilarityThreshold*RelaxationFactor)
}

func TestSelectStableOnTies(t *testing.T) {
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{
		fileContent("a", chunk(0, 0.7, "first"), chunk(1, 0.8, "top")),
		fileContent("b", chunk(0, 0.7, "second"), chunk(1, 0.7, "third")),
	}}

	got := NewRetriever(nil).RetrieveTop(query, cluster, 0.5, 3)
	texts := make([]string, len(got))
	for i, c := range got {
		texts[i] = c.Chunk.TextContent
	}
	assert.Equal(t, []string{"top", "first", "second"}, texts)
}

func TestSelectNonPositiveMax(t *testing.T) {
	got, _ := Select([]Candidate{{Similarity: 1}}, 0.5, 0)
	assert.Empty(t, got)
}

func TestCandidatesSkipMalformedChunks(t *testing.T) {
	var list types.EmbeddingList
	require.NoError(t, json.Unmarshal([]byte(`[
		{"vector":[1,0],"text_content":"ok","index":0},
		{"vector":"oops","index":1},
		{"vector":[],"text_content":"empty","index":2},
		{"vector":[1,0],"text_content":"neg","index":-1},
		{"vector":[1,0,0],"text_content":"wide","index":3}
	]`), &list))

	ref := fileContent("a")
	ref.SetEmbeddings(list)
	cluster := &types.DataCluster{
		FileContents: []*types.FileContentReference{ref},
		ToolCalls:    []*types.ToolCall{{RefID: "t", Name: "noop"}},
	}

	got := NewRetriever(nil).Candidates(query, cluster)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Chunk.TextContent)
	assert.Equal(t, types.CollectionFileContents, got[0].ReferenceType)
}

func TestCandidatesFollowCollectionOrder(t *testing.T) {
	msg := &types.MessageReference{RefID: "m", Role: "user", Content: "hi"}
	msg.SetEmbeddings(types.EmbeddingList{chunk(0, 0.2, "msg")})
	code := &types.CodeExecution{RefID: "c", CodeBlock: types.CodeBlock{Language: types.LanguageGo, Code: "x"}}
	code.SetEmbeddings(types.EmbeddingList{chunk(0, 0.3, "code")})

	cluster := &types.DataCluster{
		CodeExecutions: []*types.CodeExecution{code},
		FileContents:   []*types.FileContentReference{fileContent("f", chunk(0, 0.4, "file"))},
		Messages:       []*types.MessageReference{msg},
		Embeddings:     types.EmbeddingList{chunk(0, 1, "free-standing")},
	}

	var kinds []string
	for _, c := range NewRetriever(nil).Candidates(query, cluster) {
		kinds = append(kinds, c.ReferenceType)
	}
	assert.Equal(t, []string{types.CollectionMessages, types.CollectionFileContents, types.CollectionCodeExecutions}, kinds)
}

func TestAssembleGroupsByReference(t *testing.T) {
	a := fileContent("A", chunk(0, 0.9, "a0"), chunk(1, 0.5, "a1"))
	b := fileContent("B", chunk(0, 0.7, "b0"))
	filler := fileContent("C", chunk(0, 0.01, "c0"), chunk(1, 0.02, "c1"))
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{a, b, filler}}

	top := NewRetriever(nil).RetrieveTop(query, cluster, 0.3, 3)
	require.Equal(t, []float64{0.9, 0.7, 0.5}, similarities(top))

	out := Assemble(top, "what is a?")
	texts := make([]string, len(out))
	for i, c := range out {
		texts[i] = c.TextContent
	}
	if diff := cmp.Diff([]string{"a0", "a1", "b0"}, texts); diff != "" {
		t.Errorf("assembled order mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleAppendsHistoryAcrossQueries(t *testing.T) {
	a := fileContent("A", chunk(0, 0.9, "a0"))
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{a}}
	r := NewRetriever(nil)

	Assemble(r.RetrieveTop(query, cluster, 0.6, 10), "first query")
	out := Assemble(r.RetrieveTop(query, cluster, 0.6, 10), "second query")
	require.Len(t, out, 1)

	stored := a.Embeddings()[0]
	history := stored.SimilarityHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "first query", history[0].Query)
	assert.Equal(t, "second query", history[1].Query)
	assert.InDelta(t, 0.9, history[0].Similarity, 1e-6)
	assert.Len(t, out[0].SimilarityHistory(), 2)
}

func TestAssembledChunksAreDetachedFromCluster(t *testing.T) {
	a := fileContent("A", chunk(0, 0.9, "a0"))
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{a}}
	r := NewRetriever(nil)

	first := Assemble(r.RetrieveTop(query, cluster, 0.6, 10), "first query")
	require.Len(t, first, 1)
	first[0].Vector[0] = 42

	Assemble(r.RetrieveTop(query, cluster, 0.6, 10), "second query")

	assert.Len(t, first[0].SimilarityHistory(), 1)
	assert.Len(t, a.Embeddings()[0].SimilarityHistory(), 2)
	assert.InDelta(t, 0.9, a.Embeddings()[0].Vector[0], 1e-6)
}

func TestAssembleMatchesKeepsSimilarity(t *testing.T) {
	a := fileContent("A", chunk(1, 0.5, "a1"), chunk(0, 0.9, "a0"))
	b := fileContent("B", chunk(0, 0.7, "b0"))
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{a, b}}

	matches := AssembleMatches(NewRetriever(nil).RetrieveTop(query, cluster, 0.3, 3), "q")
	require.Len(t, matches, 3)

	got := make([]string, len(matches))
	sims := make([]float64, len(matches))
	for i, m := range matches {
		got[i] = m.ReferenceID + "/" + m.Chunk.TextContent
		sims[i] = math.Round(m.Similarity*1000) / 1000
	}
	assert.Equal(t, []string{"A/a0", "A/a1", "B/b0"}, got)
	assert.Equal(t, []float64{0.9, 0.5, 0.7}, sims)
	assert.Equal(t, types.CollectionFileContents, matches[0].ReferenceType)
}

func TestAssembleWithoutIDsGroupsByIdentity(t *testing.T) {
	a := fileContent("", chunk(1, 0.8, "a1"), chunk(0, 0.6, "a0"))
	b := fileContent("", chunk(0, 0.7, "b0"))
	cluster := &types.DataCluster{FileContents: []*types.FileContentReference{a, b}}

	out := Assemble(NewRetriever(nil).RetrieveTop(query, cluster, 0.5, 2), "q")
	require.Len(t, out, 2)
	assert.Equal(t, "a1", out[0].TextContent)
	assert.Equal(t, "b0", out[1].TextContent)
}

type fakeGenerator struct {
	calls     []types.Language
	inputs    []string
	empty     bool
	err       error
	failAfter int
}

func (f *fakeGenerator) GenerateEmbeddings(_ context.Context, _ *agent.APIManager, input string, lang types.Language) ([]types.EmbeddingChunk, error) {
	f.calls = append(f.calls, lang)
	f.inputs = append(f.inputs, input)
	if f.err != nil && len(f.calls) > f.failAfter {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	return []types.EmbeddingChunk{{Vector: []float32{1, float32(len(f.calls))}, TextContent: input, Index: 0}}, nil
}

func syncCluster() *types.DataCluster {
	return &types.DataCluster{
		Files:        []*types.FileReference{{RefID: "f", Filename: "main.go", Content: "package main"}},
		FileContents: []*types.FileContentReference{{RefID: "fc", Filename: "README.md", Content: "# Title"}},
		CodeExecutions: []*types.CodeExecution{{
			RefID:     "c",
			CodeBlock: types.CodeBlock{Language: types.LanguagePython, Code: "print(1)"},
		}},
		Messages:  []*types.MessageReference{{RefID: "m", Role: "user", Content: "hello"}},
		ToolCalls: []*types.ToolCall{{RefID: "t", Name: "noop"}},
	}
}

func TestSynchronizeGeneratesMissing(t *testing.T) {
	gen := &fakeGenerator{}
	cluster, err := NewSynchronizer(gen, nil, nil).Synchronize(context.Background(), syncCluster(), false)
	require.NoError(t, err)

	assert.Equal(t, []types.Language{types.LanguageText, types.LanguageGo, types.LanguageMarkdown, types.LanguagePython}, gen.calls)
	assert.Len(t, cluster.Files[0].Embeddings(), 1)
	assert.Len(t, cluster.CodeExecutions[0].Embeddings(), 1)
	assert.Len(t, cluster.ToolCalls, 1, "non-embeddable items are kept")
}

func TestSynchronizeIsIdempotent(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewSynchronizer(gen, nil, nil)
	cluster, err := s.Synchronize(context.Background(), syncCluster(), false)
	require.NoError(t, err)
	before := cluster.Files[0].Embeddings()[0].Vector

	cluster, err = s.Synchronize(context.Background(), cluster, false)
	require.NoError(t, err)
	assert.Len(t, gen.calls, 4)
	assert.Equal(t, before, cluster.Files[0].Embeddings()[0].Vector)
}

func TestSynchronizeForced(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewSynchronizer(gen, nil, nil)
	cluster, err := s.Synchronize(context.Background(), syncCluster(), false)
	require.NoError(t, err)
	before := cluster.Files[0].Embeddings()[0].Vector

	cluster, err = s.Synchronize(context.Background(), cluster, true)
	require.NoError(t, err)
	assert.Len(t, gen.calls, 8)
	assert.NotEqual(t, before, cluster.Files[0].Embeddings()[0].Vector)
}

func TestSynchronizeEmptyResultAborts(t *testing.T) {
	gen := &fakeGenerator{empty: true}
	_, err := NewSynchronizer(gen, nil, nil).Synchronize(context.Background(), syncCluster(), false)
	assert.ErrorIs(t, err, ErrNoEmbeddings)
	assert.Len(t, gen.calls, 1, "no continuation after the first failure")
}

func TestSynchronizeGeneratorError(t *testing.T) {
	boom := errors.New("backend down")
	gen := &fakeGenerator{err: boom, failAfter: 2}
	_, err := NewSynchronizer(gen, nil, nil).Synchronize(context.Background(), syncCluster(), false)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, gen.calls, 3)
}

func TestSynchronizeLoadsFileFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\nfrom disk"), 0o644))

	cluster := &types.DataCluster{Files: []*types.FileReference{{RefID: "f", Path: path}}}
	gen := &fakeGenerator{}
	apis := &agent.APIManager{Loader: rag.NewAutoLoader()}

	_, err := NewSynchronizer(gen, apis, nil).Synchronize(context.Background(), cluster, false)
	require.NoError(t, err)
	require.Len(t, gen.inputs, 1)
	assert.Contains(t, gen.inputs[0], "from disk")
	assert.Equal(t, []types.Language{types.LanguageMarkdown}, gen.calls)
}

func TestSynchronizeNilCluster(t *testing.T) {
	_, err := NewSynchronizer(&fakeGenerator{}, nil, nil).Synchronize(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestLanguageForFile(t *testing.T) {
	tests := map[string]types.Language{
		"main.go":     types.LanguageGo,
		"App.KT":      types.LanguageKotlin,
		"mix.exs":     types.LanguageElixir,
		"script.ps1":  types.LanguagePowerShell,
		"paper.tex":   types.LanguageLatex,
		"notes":       types.LanguageText,
		"archive.zip": types.LanguageText,
	}
	for name, want := range tests {
		assert.Equal(t, want, LanguageForFile(name), name)
	}

	assert.Equal(t, types.LanguageText, LanguageOf(&types.MessageReference{}))
	assert.Equal(t, types.LanguageText, LanguageOf(&types.CodeExecution{}))
}
