package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrInvalidParams is returned when task input does not match its schema.
var ErrInvalidParams = errors.New("invalid task parameters")

// Parameter defaults.
const (
	DefaultMaxResults          = 10
	DefaultSimilarityThreshold = 0.6
	DefaultVoice               = "nova"
	DefaultSpeed               = 1.0
)

// RetrievalParams are the inputs of the retrieval task.
type RetrievalParams struct {
	Prompt              string  `json:"prompt"`
	MaxResults          int     `json:"max_results"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	UpdateAll           bool    `json:"update_all"`
}

// SpeechParams are the inputs of the speech task.
type SpeechParams struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

func ptr[T any](v T) *T { return &v }

func rawDefault(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// RetrievalSchema is the input schema of the retrieval task.
func RetrievalSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"prompt": {
				Type:        "string",
				Description: "The input prompt text to retrieve embeddings for.",
				MinLength:   ptr(1),
			},
			"max_results": {
				Type:        "integer",
				Description: "The maximum number of results to return.",
				Default:     rawDefault(DefaultMaxResults),
				Minimum:     ptr(1.0),
			},
			"similarity_threshold": {
				Type:        "number",
				Description: "The similarity threshold to consider.",
				Default:     rawDefault(DefaultSimilarityThreshold),
				Minimum:     ptr(-1.0),
				Maximum:     ptr(1.0),
			},
			"update_all": {
				Type:        "boolean",
				Description: "Whether to regenerate embeddings for every item in the data cluster.",
				Default:     rawDefault(false),
			},
		},
		Required:             []string{"prompt"},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// SpeechSchema is the input schema of the speech task.
func SpeechSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"text": {
				Type:        "string",
				Description: "The text to convert to speech.",
				MinLength:   ptr(1),
			},
			"voice": {
				Type:        "string",
				Description: "The voice to use for the speech synthesis.",
				Default:     rawDefault(DefaultVoice),
			},
			"speed": {
				Type:        "number",
				Description: "The speed of the speech synthesis.",
				Default:     rawDefault(DefaultSpeed),
				Minimum:     ptr(0.25),
				Maximum:     ptr(4.0),
			},
		},
		Required:             []string{"text"},
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

var (
	resolveRetrieval = sync.OnceValues(func() (*jsonschema.Resolved, error) {
		return RetrievalSchema().Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	})
	resolveSpeech = sync.OnceValues(func() (*jsonschema.Resolved, error) {
		return SpeechSchema().Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	})
)

// decodeParams validates raw against the schema, fills defaults and decodes
// the result into out.
func decodeParams(resolve func() (*jsonschema.Resolved, error), raw json.RawMessage, out any) error {
	rs, err := resolve()
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}

	instance := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &instance); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}
	if err := rs.ApplyDefaults(&instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := rs.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	b, err := json.Marshal(instance)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// ParseRetrievalParams decodes and validates retrieval task input.
func ParseRetrievalParams(raw json.RawMessage) (RetrievalParams, error) {
	var p RetrievalParams
	err := decodeParams(resolveRetrieval, raw, &p)
	return p, err
}

// ParseSpeechParams decodes and validates speech task input.
func ParseSpeechParams(raw json.RawMessage) (SpeechParams, error) {
	var p SpeechParams
	err := decodeParams(resolveSpeech, raw, &p)
	return p, err
}

// Validate checks params built in Go code against the task schema.
func (p RetrievalParams) Validate() error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = ParseRetrievalParams(b)
	return err
}

// Validate checks params built in Go code against the task schema.
func (p SpeechParams) Validate() error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = ParseSpeechParams(b)
	return err
}

// DefaultRetrievalParams returns the defaults with the given prompt.
func DefaultRetrievalParams(prompt string) RetrievalParams {
	return RetrievalParams{Prompt: prompt, MaxResults: DefaultMaxResults, SimilarityThreshold: DefaultSimilarityThreshold}
}

// DefaultSpeechParams returns the defaults with the given text.
func DefaultSpeechParams(text string) SpeechParams {
	return SpeechParams{Text: text, Voice: DefaultVoice, Speed: DefaultSpeed}
}
