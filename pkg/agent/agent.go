// Package agent exposes the model capabilities used by tasks: turning text
// into embedding chunks and turning text into speech.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sanonone/kektorflow/pkg/core/types"
	"github.com/sanonone/kektorflow/pkg/embeddings"
	"github.com/sanonone/kektorflow/pkg/metrics"
	"github.com/sanonone/kektorflow/pkg/rag"
)

// Creation metadata keys stamped on every generated chunk.
const (
	MetaModel     = "model"
	MetaLanguage  = "language"
	MetaCreatedAt = "created_at"
)

// ErrEmptyInput is returned when there is no text to process.
var ErrEmptyInput = errors.New("agent: empty input")

// EmbeddingGenerator turns text into ordered embedding chunks. On success at
// least one chunk is returned.
type EmbeddingGenerator interface {
	GenerateEmbeddings(ctx context.Context, apis *APIManager, input string, language types.Language) ([]types.EmbeddingChunk, error)
}

// SpeechGenerator synthesizes speech and returns a file reference to the audio.
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, apis *APIManager, input, voice string, speed float64) (types.References, error)
}

// Agent implements both capabilities on top of the APIManager backends.
type Agent struct {
	Splitter rag.SplitterConfig
	Logger   *slog.Logger

	now func() time.Time
}

// New returns an Agent with the given chunking settings.
func New(splitter rag.SplitterConfig, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{Splitter: splitter, Logger: logger, now: time.Now}
}

func (a *Agent) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// GenerateEmbeddings splits input with a splitter chosen for the language,
// embeds every piece and returns the chunks indexed from zero.
func (a *Agent) GenerateEmbeddings(ctx context.Context, apis *APIManager, input string, language types.Language) ([]types.EmbeddingChunk, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	embedder, err := apis.Embeddings()
	if err != nil {
		return nil, err
	}

	pieces := rag.NewSplitter(a.Splitter, language).SplitText(input)
	if len(pieces) == 0 {
		pieces = []string{input}
	}

	vectors, err := embeddings.EmbedAll(ctx, embedder, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed %d pieces: %w", len(pieces), err)
	}

	created := a.clock().UTC().Format(time.RFC3339)
	chunks := make([]types.EmbeddingChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = types.EmbeddingChunk{
			Vector:      vectors[i],
			TextContent: piece,
			Index:       i,
			CreationMetadata: map[string]any{
				MetaModel:     embedder.Model(),
				MetaLanguage:  string(language),
				MetaCreatedAt: created,
			},
		}
	}

	metrics.EmbeddingsGeneratedTotal.WithLabelValues(string(language)).Add(float64(len(chunks)))
	a.logger().Debug("[Agent] Embeddings generated", "language", language, "chunks", len(chunks))
	return chunks, nil
}

// GenerateSpeech synthesizes input and stores the clip under the manager's
// audio directory.
func (a *Agent) GenerateSpeech(ctx context.Context, apis *APIManager, input, voice string, speed float64) (types.References, error) {
	if strings.TrimSpace(input) == "" {
		return types.References{}, ErrEmptyInput
	}
	client, err := apis.TextToSpeech()
	if err != nil {
		return types.References{}, err
	}

	audio, err := client.Speak(ctx, input, voice, speed)
	if err != nil {
		return types.References{}, err
	}

	dir := apis.audioDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.References{}, fmt.Errorf("create audio dir: %w", err)
	}

	id := types.NewID()
	name := fmt.Sprintf("speech-%s.%s", id, audio.Format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return types.References{}, fmt.Errorf("write audio: %w", err)
	}

	metrics.SpeechGeneratedTotal.Inc()
	a.logger().Info("[Agent] Speech generated", "path", path, "bytes", len(audio.Data), "voice", voice)

	return types.References{
		Files: []*types.FileReference{{
			RefID:     id,
			Filename:  name,
			Path:      path,
			MediaType: audio.MediaType,
		}},
	}, nil
}
