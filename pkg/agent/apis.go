package agent

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sanonone/kektorflow/pkg/embeddings"
	"github.com/sanonone/kektorflow/pkg/llm"
	"github.com/sanonone/kektorflow/pkg/rag"
)

// API names a backend kind a task may require.
type API string

const (
	APIEmbeddings   API = "embeddings"
	APITextToSpeech API = "text_to_speech"
)

// ErrAPIUnavailable is returned when a required backend is not configured.
var ErrAPIUnavailable = errors.New("api unavailable")

// APIManager holds the configured backends a run may call. A nil field means
// the API is not available. It is read-only after construction.
type APIManager struct {
	Embedder embeddings.Embedder
	Speech   llm.SpeechClient

	// AudioDir receives synthesized clips. Empty means os.TempDir().
	AudioDir string

	// Loader reads file references that carry only a path.
	Loader rag.Loader
}

// Embeddings returns the embedding backend.
func (m *APIManager) Embeddings() (embeddings.Embedder, error) {
	if m == nil || m.Embedder == nil {
		return nil, fmt.Errorf("%w: %s", ErrAPIUnavailable, APIEmbeddings)
	}
	return m.Embedder, nil
}

// TextToSpeech returns the speech backend.
func (m *APIManager) TextToSpeech() (llm.SpeechClient, error) {
	if m == nil || m.Speech == nil {
		return nil, fmt.Errorf("%w: %s", ErrAPIUnavailable, APITextToSpeech)
	}
	return m.Speech, nil
}

func (m *APIManager) audioDir() string {
	if m == nil || m.AudioDir == "" {
		return os.TempDir()
	}
	return m.AudioDir
}

// Available lists the configured APIs in name order.
func (m *APIManager) Available() []API {
	var out []API
	if m == nil {
		return out
	}
	if m.Embedder != nil {
		out = append(out, APIEmbeddings)
	}
	if m.Speech != nil {
		out = append(out, APITextToSpeech)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Require returns an error naming the first missing API.
func (m *APIManager) Require(apis ...API) error {
	for _, api := range apis {
		var err error
		switch api {
		case APIEmbeddings:
			_, err = m.Embeddings()
		case APITextToSpeech:
			_, err = m.TextToSpeech()
		default:
			err = fmt.Errorf("%w: unknown api %q", ErrAPIUnavailable, api)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
